package countdown

import "time"

// Thresholds holds the tier boundaries. Both are inclusive: an order with
// exactly UrgentWindow remaining is URGENT, exactly ApproachingWindow is
// APPROACHING.
type Thresholds struct {
	Approaching time.Duration
	Urgent      time.Duration
}

// DefaultThresholds are the product defaults: warn 30 minutes out, escalate
// at 10 minutes.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Approaching: 30 * time.Minute,
		Urgent:      10 * time.Minute,
	}
}

// RemainingTime returns the signed time left until the order's delivery
// deadline. Negative means overdue. Pure: now is always injected, never read
// from the wall clock.
func RemainingTime(o Order, now time.Time) time.Duration {
	return o.DeliveryDeadline.Sub(now)
}

// ClassifyTier maps remaining time to an urgency tier. The mapping is total
// and monotonic: as remaining decreases the tier never decreases.
func (t Thresholds) ClassifyTier(remaining time.Duration) Tier {
	switch {
	case remaining < 0:
		return TierOverdue
	case remaining <= t.Urgent:
		return TierUrgent
	case remaining <= t.Approaching:
		return TierApproaching
	default:
		return TierNone
	}
}
