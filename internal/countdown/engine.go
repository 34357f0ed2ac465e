package countdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine evaluates eligible orders against the warning thresholds and
// dispatches tier-crossing warnings. Safe to run concurrently with itself:
// the warning store's compare-and-set rejects the slower writer.
type Engine struct {
	orders     OrderStore
	warnings   WarningStore
	dispatcher Dispatcher
	thresholds Thresholds

	workers      int
	orderTimeout time.Duration
	logger       *slog.Logger

	// onOutcome is called once per swept order with the outcome label
	// ("dispatched", "skipped", "conflict", "failed"). Used for metrics.
	onOutcome func(outcome string, tier Tier)
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the sweep worker pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithOrderTimeout bounds the external calls for a single order so one slow
// order cannot stall the sweep.
func WithOrderTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.orderTimeout = d
		}
	}
}

// WithOutcomeHook registers a per-order outcome callback.
func WithOutcomeHook(fn func(outcome string, tier Tier)) Option {
	return func(e *Engine) { e.onOutcome = fn }
}

// NewEngine creates a sweep engine.
func NewEngine(orders OrderStore, warnings WarningStore, dispatcher Dispatcher, thresholds Thresholds, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		orders:     orders,
		warnings:   warnings,
		dispatcher: dispatcher,
		thresholds: thresholds,
		workers:    4,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the configured tier boundaries.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Sweep runs one full evaluation pass over all eligible orders at the given
// instant. Per-order failures are isolated and counted; only a failure to
// list orders at all aborts the sweep.
func (e *Engine) Sweep(ctx context.Context, now time.Time) SweepResult {
	start := time.Now()
	var result SweepResult

	eligible, err := e.orders.ListEligible(ctx, now)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list eligible orders: %v", err))
		result.Duration = time.Since(start)
		return result
	}
	result.Scanned = len(eligible)
	if len(eligible) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	// Worker pool: one channel of orders, N workers. No cross-order
	// dependency exists, so evaluation order does not matter.
	workers := e.workers
	if workers > len(eligible) {
		workers = len(eligible)
	}

	ch := make(chan Order, len(eligible))
	for _, o := range eligible {
		ch <- o
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for order := range ch {
				outcome, tier, err := e.evaluate(ctx, order, now)

				mu.Lock()
				switch outcome {
				case outcomeDispatched:
					result.Dispatched++
				case outcomeSkipped:
					result.Skipped++
				case outcomeConflict:
					result.Conflicts++
				case outcomeFailed:
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("order %s: %v", order.ID, err))
				}
				mu.Unlock()

				if e.onOutcome != nil {
					e.onOutcome(outcome, tier)
				}
			}
		}()
	}

	wg.Wait()
	result.Duration = time.Since(start)

	e.logger.Info("Sweep complete", "summary", result.Summary())
	return result
}

const (
	outcomeDispatched = "dispatched"
	outcomeSkipped    = "skipped"
	outcomeConflict   = "conflict"
	outcomeFailed     = "failed"
)

// evaluate runs the read-decide-dispatch-persist sequence for one order.
// Dispatch happens before the tier advance: a crash between the two means a
// duplicate warning on the next sweep, never a missed one.
func (e *Engine) evaluate(parent context.Context, order Order, now time.Time) (string, Tier, error) {
	ctx := parent
	if e.orderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, e.orderTimeout)
		defer cancel()
	}

	remaining := RemainingTime(order, now)
	newTier := e.thresholds.ClassifyTier(remaining)

	oldTier := TierNone
	if rec, ok, err := e.warnings.Get(ctx, order.ID); err != nil {
		return outcomeFailed, newTier, fmt.Errorf("get warning record: %w", err)
	} else if ok {
		oldTier = rec.Tier
	}

	if newTier <= oldTier {
		return outcomeSkipped, newTier, nil
	}

	decision := Decision{
		OrderID:     order.ID,
		RecipientID: order.RecipientID,
		Tier:        newTier,
		Remaining:   remaining,
	}

	if err := e.dispatcher.Dispatch(ctx, decision); err != nil {
		// Record stays at oldTier so the next sweep retries this tier.
		return outcomeFailed, newTier, fmt.Errorf("dispatch %s warning: %w", newTier, err)
	}

	if err := e.warnings.CompareAndSetTier(ctx, order.ID, oldTier, newTier, now); err != nil {
		if errors.Is(err, ErrTierConflict) {
			// A concurrent sweep advanced the record first. Its dispatch
			// stands; ours is a duplicate the receiving side tolerates.
			e.logger.Debug("Warning tier raced", "order_id", order.ID, "tier", newTier.String())
			return outcomeConflict, newTier, nil
		}
		// Dispatched but not persisted: the next sweep re-dispatches this
		// tier, so the warning is duplicated rather than lost.
		return outcomeFailed, newTier, fmt.Errorf("advance warning tier: %w", err)
	}

	e.logger.Info("Delivery warning dispatched",
		"order_id", order.ID,
		"recipient_id", order.RecipientID,
		"tier", newTier.String(),
		"remaining", remaining.Round(time.Second))
	return outcomeDispatched, newTier, nil
}
