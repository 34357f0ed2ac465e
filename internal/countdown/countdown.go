// Package countdown implements the delivery countdown engine: it classifies
// how close pending orders are to their delivery deadline and fires a
// warning to the recipient exactly once per urgency tier.
//
// Pipeline per sweep: list eligible orders → classify remaining time →
// compare against the recorded tier → dispatch → advance the record via
// compare-and-set. The engine holds no state between sweeps; the warning
// record in Postgres is the only shared mutable state.
package countdown

import (
	"context"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Tiers
// --------------------------------------------------------------------------

// Tier is an ordered urgency classification derived from the remaining time
// to an order's delivery deadline. Higher values are more urgent; a record's
// tier only ever moves forward.
type Tier int

const (
	TierNone Tier = iota
	TierApproaching
	TierUrgent
	TierOverdue
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "NONE"
	case TierApproaching:
		return "APPROACHING"
	case TierUrgent:
		return "URGENT"
	case TierOverdue:
		return "OVERDUE"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// --------------------------------------------------------------------------
// Domain types
// --------------------------------------------------------------------------

// Order is the read-only view of a marketplace order the engine sweeps.
type Order struct {
	ID               string
	RecipientID      string
	Status           string
	DeliveryDeadline time.Time
}

// WarningRecord tracks the highest tier already notified for an order.
type WarningRecord struct {
	OrderID        string
	Tier           Tier
	LastNotifiedAt time.Time
}

// Decision is a single warning the sweep decided to dispatch.
type Decision struct {
	OrderID     string
	RecipientID string
	Tier        Tier
	Remaining   time.Duration
}

// SweepResult summarizes one full sweep over eligible orders.
type SweepResult struct {
	Scanned    int
	Dispatched int
	Skipped    int // no tier transition
	Conflicts  int // lost a compare-and-set race, handled elsewhere
	Failed     int
	Duration   time.Duration
	Errors     []string
}

// Summary returns a single log-friendly line.
func (r SweepResult) Summary() string {
	return fmt.Sprintf("scanned=%d dispatched=%d skipped=%d conflicts=%d failed=%d duration=%s",
		r.Scanned, r.Dispatched, r.Skipped, r.Conflicts, r.Failed, r.Duration.Round(time.Millisecond))
}

// --------------------------------------------------------------------------
// Ports
// --------------------------------------------------------------------------

// OrderStore lists orders with an active delivery window.
type OrderStore interface {
	ListEligible(ctx context.Context, now time.Time) ([]Order, error)
}

// WarningStore persists per-order warning records. CompareAndSetTier must
// only succeed when the stored tier still equals expectedOld (absent record
// counts as TierNone), returning ErrTierConflict otherwise.
type WarningStore interface {
	Get(ctx context.Context, orderID string) (WarningRecord, bool, error)
	CompareAndSetTier(ctx context.Context, orderID string, expectedOld, newTier Tier, notifiedAt time.Time) error
}

// Dispatcher delivers a warning to the recipient. It may be called more than
// once for the same (order, tier) pair; dedup is the receiving side's
// concern.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Decision) error
}

// Domain errors
var (
	ErrTierConflict = conflictError("warning tier already advanced")
	ErrNotFound     = notFoundError("not found")
)

type conflictError string

func (e conflictError) Error() string { return string(e) }

type notFoundError string

func (e notFoundError) Error() string { return string(e) }
