// Package ingest consumes order status events from the marketplace app over
// NATS and mirrors them into the orders table the sweep reads. A queue
// subscription shares the load across replicas. Delivery is fire-and-forget;
// the marketplace republishes the full order state on every change, so a
// dropped event is corrected by the next one.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rassdread/homecheff-deliverywatch/internal/config"
	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
	"github.com/rassdread/homecheff-deliverywatch/internal/metrics"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
	handleTimeout    = 5 * time.Second
)

// OrderEvent is the JSON payload published by the marketplace app whenever
// an order's status or delivery window changes.
type OrderEvent struct {
	OrderID          string     `json:"order_id"`
	RecipientID      string     `json:"recipient_id"`
	Status           string     `json:"status"`
	DeliveryDeadline *time.Time `json:"delivery_deadline"`
}

// OrderWriter persists ingested orders. Implemented by store.OrderStore.
type OrderWriter interface {
	Upsert(ctx context.Context, o countdown.Order) error
}

// Subscriber consumes order events from NATS.
type Subscriber struct {
	url     string
	subject string
	queue   string
	writer  OrderWriter
	logger  *slog.Logger
}

// NewSubscriber creates an order-event subscriber.
func NewSubscriber(url, subject, queue string, writer OrderWriter, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     url,
		subject: subject,
		queue:   queue,
		writer:  writer,
		logger:  logger,
	}
}

// Start connects and consumes until ctx is cancelled, reconnecting with
// capped backoff on connection loss. Intended to be called with `go`.
func (s *Subscriber) Start(ctx context.Context) {
	backoff := reconnectBackoff

	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			s.logger.Info("Order ingest stopped (context cancelled)")
			return
		}

		s.logger.Error("Order ingest disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// consume runs a single subscription session. Returns when the connection
// drops or the context is cancelled.
func (s *Subscriber) consume(ctx context.Context) error {
	conn, err := nats.Connect(s.url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer conn.Drain()

	closed := make(chan error, 1)
	conn.SetClosedHandler(func(c *nats.Conn) {
		closed <- c.LastError()
	})

	sub, err := conn.QueueSubscribe(s.subject, s.queue, func(m *nats.Msg) {
		hCtx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := s.handle(hCtx, m.Data); err != nil {
			s.logger.Warn("Order event handling failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("Order ingest connected", "subject", s.subject, "queue", s.queue)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-closed:
		return fmt.Errorf("connection closed: %w", err)
	}
}

// handle validates one order event and upserts it.
func (s *Subscriber) handle(ctx context.Context, raw []byte) error {
	metrics.OrderEventsTotal.Inc()

	var event OrderEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		metrics.OrderEventsInvalidTotal.Inc()
		// Malformed payloads never become valid; drop instead of redeliver.
		s.logger.Warn("Dropping malformed order event", "error", err)
		return nil
	}
	if err := validate(event); err != nil {
		metrics.OrderEventsInvalidTotal.Inc()
		s.logger.Warn("Dropping invalid order event", "order_id", event.OrderID, "error", err)
		return nil
	}

	order := countdown.Order{
		ID:          event.OrderID,
		RecipientID: event.RecipientID,
		Status:      event.Status,
	}
	if event.DeliveryDeadline != nil {
		order.DeliveryDeadline = *event.DeliveryDeadline
	}
	return s.writer.Upsert(ctx, order)
}

func validate(e OrderEvent) error {
	if e.OrderID == "" {
		return fmt.Errorf("missing order_id")
	}
	if e.RecipientID == "" {
		return fmt.Errorf("missing recipient_id")
	}
	switch e.Status {
	case config.StatusPlaced, config.StatusConfirmed, config.StatusInTransit,
		config.StatusDelivered, config.StatusCancelled:
		return nil
	default:
		return fmt.Errorf("unknown status %q", e.Status)
	}
}
