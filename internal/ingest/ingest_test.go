package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
)

type memWriter struct {
	orders []countdown.Order
	err    error
}

func (m *memWriter) Upsert(ctx context.Context, o countdown.Order) error {
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, o)
	return nil
}

func testSubscriber(w OrderWriter) *Subscriber {
	return NewSubscriber("nats://localhost:4222", "homecheff.orders.status", "deliverywatch", w, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleValidEvent(t *testing.T) {
	writer := &memWriter{}
	sub := testSubscriber(writer)

	raw := []byte(`{
		"order_id": "ord-42",
		"recipient_id": "user-7",
		"status": "IN_TRANSIT",
		"delivery_deadline": "2026-08-28T18:00:00Z"
	}`)
	require.NoError(t, sub.handle(context.Background(), raw))

	require.Len(t, writer.orders, 1)
	o := writer.orders[0]
	require.Equal(t, "ord-42", o.ID)
	require.Equal(t, "user-7", o.RecipientID)
	require.Equal(t, "IN_TRANSIT", o.Status)
	require.Equal(t, time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC), o.DeliveryDeadline.UTC())
}

func TestHandleTerminalEventWithoutDeadline(t *testing.T) {
	writer := &memWriter{}
	sub := testSubscriber(writer)

	raw := []byte(`{"order_id": "ord-1", "recipient_id": "u1", "status": "DELIVERED"}`)
	require.NoError(t, sub.handle(context.Background(), raw))

	require.Len(t, writer.orders, 1)
	require.True(t, writer.orders[0].DeliveryDeadline.IsZero())
}

func TestHandleDropsMalformedPayload(t *testing.T) {
	writer := &memWriter{}
	sub := testSubscriber(writer)

	// Malformed JSON never becomes valid; dropped without error so the
	// subject does not wedge on a poison message.
	require.NoError(t, sub.handle(context.Background(), []byte("{not json")))
	require.Empty(t, writer.orders)
}

func TestHandleDropsInvalidEvent(t *testing.T) {
	writer := &memWriter{}
	sub := testSubscriber(writer)

	cases := []string{
		`{"recipient_id": "u1", "status": "PLACED"}`,
		`{"order_id": "o1", "status": "PLACED"}`,
		`{"order_id": "o1", "recipient_id": "u1", "status": "SHIPPED"}`,
	}
	for _, raw := range cases {
		require.NoError(t, sub.handle(context.Background(), []byte(raw)))
	}
	require.Empty(t, writer.orders)
}

func TestHandlePropagatesWriterError(t *testing.T) {
	writer := &memWriter{err: context.DeadlineExceeded}
	sub := testSubscriber(writer)

	raw := []byte(`{"order_id": "o1", "recipient_id": "u1", "status": "PLACED"}`)
	require.Error(t, sub.handle(context.Background(), raw))
}
