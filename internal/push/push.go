// Package push delivers delivery warnings to recipients. Transports: a
// Redis pub/sub publisher consumed by the marketplace app's realtime layer,
// and an optional HTTP webhook. Both are nil-safe no-ops when unconfigured.
package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
)

// Event is the JSON payload published for a delivery warning.
type Event struct {
	OrderID          string `json:"order_id"`
	RecipientID      string `json:"recipient_id"`
	Tier             string `json:"tier"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	DispatchedAt     string `json:"dispatched_at"`
}

func newEvent(d countdown.Decision, at time.Time) Event {
	return Event{
		OrderID:          d.OrderID,
		RecipientID:      d.RecipientID,
		Tier:             d.Tier.String(),
		RemainingSeconds: int64(d.Remaining.Seconds()),
		DispatchedAt:     at.UTC().Format(time.RFC3339),
	}
}

// Auditor records dispatched warnings. Implemented by store.DispatchLog.
type Auditor interface {
	Record(ctx context.Context, d countdown.Decision, at time.Time) error
}

// Fanout sends a warning through every configured transport and implements
// countdown.Dispatcher. A failure on any transport fails the dispatch, so
// the engine retries the tier on the next sweep; transports must tolerate
// the resulting duplicate.
type Fanout struct {
	redis   *RedisPublisher // nil = disabled
	webhook *WebhookSender  // nil = disabled
	audit   Auditor         // nil = disabled; best effort
	timeout time.Duration
	logger  *slog.Logger
}

// NewFanout assembles the dispatcher. Nil transports are skipped; with no
// transport configured dispatches are logged and considered delivered.
func NewFanout(redis *RedisPublisher, webhook *WebhookSender, audit Auditor, timeout time.Duration, logger *slog.Logger) *Fanout {
	return &Fanout{
		redis:   redis,
		webhook: webhook,
		audit:   audit,
		timeout: timeout,
		logger:  logger,
	}
}

// Dispatch delivers one warning. Safe to call more than once for the same
// (order, tier) pair.
func (f *Fanout) Dispatch(ctx context.Context, d countdown.Decision) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	now := time.Now()
	event := newEvent(d, now)

	if f.redis == nil && f.webhook == nil {
		f.logger.Info("Warning dispatch (no transport configured)",
			"order_id", d.OrderID, "tier", event.Tier)
	}

	if err := f.redis.Publish(ctx, event); err != nil {
		return err
	}
	if err := f.webhook.Send(ctx, event); err != nil {
		return err
	}

	if f.audit != nil {
		if err := f.audit.Record(ctx, d, now); err != nil {
			f.logger.Warn("Dispatch audit write failed",
				"order_id", d.OrderID, "error", err)
		}
	}
	return nil
}

var _ countdown.Dispatcher = (*Fanout)(nil)
