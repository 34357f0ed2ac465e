package countdown

import (
	"testing"
	"time"
)

func TestClassifyTierBoundaries(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		name      string
		remaining time.Duration
		want      Tier
	}{
		{"well before window", 2 * time.Hour, TierNone},
		{"just outside approaching", 30*time.Minute + time.Second, TierNone},
		{"exactly approaching boundary", 30 * time.Minute, TierApproaching},
		{"inside approaching", 20 * time.Minute, TierApproaching},
		{"just outside urgent", 10*time.Minute + time.Second, TierApproaching},
		{"exactly urgent boundary", 10 * time.Minute, TierUrgent},
		{"inside urgent", 5 * time.Minute, TierUrgent},
		{"exactly at deadline", 0, TierUrgent},
		{"just overdue", -time.Second, TierOverdue},
		{"long overdue", -3 * time.Hour, TierOverdue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := th.ClassifyTier(tc.remaining); got != tc.want {
				t.Fatalf("ClassifyTier(%v) = %v, want %v", tc.remaining, got, tc.want)
			}
		})
	}
}

func TestClassifyTierMonotonic(t *testing.T) {
	th := DefaultThresholds()

	// As remaining decreases the tier must never decrease.
	prev := TierNone
	for remaining := 45 * time.Minute; remaining >= -15*time.Minute; remaining -= 13 * time.Second {
		tier := th.ClassifyTier(remaining)
		if tier < prev {
			t.Fatalf("tier decreased from %v to %v at remaining=%v", prev, tier, remaining)
		}
		prev = tier
	}
	if prev != TierOverdue {
		t.Fatalf("expected final tier OVERDUE, got %v", prev)
	}
}

func TestRemainingTime(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	order := Order{ID: "o1", DeliveryDeadline: now.Add(25 * time.Minute)}
	if got := RemainingTime(order, now); got != 25*time.Minute {
		t.Fatalf("remaining = %v, want 25m", got)
	}

	overdue := Order{ID: "o2", DeliveryDeadline: now.Add(-10 * time.Minute)}
	if got := RemainingTime(overdue, now); got != -10*time.Minute {
		t.Fatalf("remaining = %v, want -10m", got)
	}
}

func TestConfiguredThresholds(t *testing.T) {
	th := Thresholds{Approaching: time.Hour, Urgent: 15 * time.Minute}

	if got := th.ClassifyTier(45 * time.Minute); got != TierApproaching {
		t.Fatalf("ClassifyTier(45m) = %v, want APPROACHING", got)
	}
	if got := th.ClassifyTier(15 * time.Minute); got != TierUrgent {
		t.Fatalf("ClassifyTier(15m) = %v, want URGENT", got)
	}
}

func TestTierString(t *testing.T) {
	if TierNone.String() != "NONE" || TierOverdue.String() != "OVERDUE" {
		t.Fatalf("unexpected tier names: %v %v", TierNone, TierOverdue)
	}
}
