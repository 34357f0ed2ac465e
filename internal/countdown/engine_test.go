package countdown

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// In-memory fakes
// --------------------------------------------------------------------------

type memOrders struct {
	mu     sync.Mutex
	orders []Order
	err    error
}

func (m *memOrders) ListEligible(ctx context.Context, now time.Time) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Order, len(m.orders))
	copy(out, m.orders)
	return out, nil
}

type memWarnings struct {
	mu      sync.Mutex
	recs    map[string]WarningRecord
	getErr  map[string]error // per-order read failures
	getHook func(orderID string)
}

func newMemWarnings() *memWarnings {
	return &memWarnings{recs: make(map[string]WarningRecord)}
}

func (m *memWarnings) Get(ctx context.Context, orderID string) (WarningRecord, bool, error) {
	m.mu.Lock()
	if err := m.getErr[orderID]; err != nil {
		m.mu.Unlock()
		return WarningRecord{}, false, err
	}
	rec, ok := m.recs[orderID]
	hook := m.getHook
	m.mu.Unlock()

	if hook != nil {
		hook(orderID)
	}
	return rec, ok, nil
}

func (m *memWarnings) CompareAndSetTier(ctx context.Context, orderID string, expectedOld, newTier Tier, notifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := TierNone
	if rec, ok := m.recs[orderID]; ok {
		current = rec.Tier
	}
	if current != expectedOld {
		return ErrTierConflict
	}
	m.recs[orderID] = WarningRecord{OrderID: orderID, Tier: newTier, LastNotifiedAt: notifiedAt}
	return nil
}

func (m *memWarnings) tier(orderID string) Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[orderID].Tier
}

type memDispatcher struct {
	mu       sync.Mutex
	calls    []Decision
	failNext int // fail this many dispatches before succeeding
}

func (m *memDispatcher) Dispatch(ctx context.Context, d Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("push gateway unavailable")
	}
	m.calls = append(m.calls, d)
	return nil
}

func (m *memDispatcher) byTier() map[Tier]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[Tier]int)
	for _, d := range m.calls {
		counts[d.Tier]++
	}
	return counts
}

func (m *memDispatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testEngine(orders OrderStore, warnings WarningStore, d Dispatcher, opts ...Option) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(orders, warnings, d, DefaultThresholds(), logger, opts...)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSweepDispatchesOnTierCrossing(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orders := &memOrders{orders: []Order{
		{ID: "near", RecipientID: "u1", Status: "IN_TRANSIT", DeliveryDeadline: now.Add(20 * time.Minute)},
		{ID: "far", RecipientID: "u2", Status: "PLACED", DeliveryDeadline: now.Add(2 * time.Hour)},
	}}
	warnings := newMemWarnings()
	dispatcher := &memDispatcher{}

	result := testEngine(orders, warnings, dispatcher).Sweep(context.Background(), now)

	require.Equal(t, 2, result.Scanned)
	require.Equal(t, 1, result.Dispatched)
	require.Equal(t, 1, result.Skipped) // "far" classifies as NONE
	require.Equal(t, 0, result.Failed)

	require.Equal(t, 1, dispatcher.count())
	d := dispatcher.calls[0]
	require.Equal(t, "near", d.OrderID)
	require.Equal(t, "u1", d.RecipientID)
	require.Equal(t, TierApproaching, d.Tier)
	require.Equal(t, 20*time.Minute, d.Remaining)

	require.Equal(t, TierApproaching, warnings.tier("near"))
}

func TestSweepIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orders := &memOrders{orders: []Order{
		{ID: "o1", RecipientID: "u1", Status: "CONFIRMED", DeliveryDeadline: now.Add(8 * time.Minute)},
	}}
	warnings := newMemWarnings()
	dispatcher := &memDispatcher{}
	engine := testEngine(orders, warnings, dispatcher)

	first := engine.Sweep(context.Background(), now)
	require.Equal(t, 1, first.Dispatched)

	// No time advance: the second sweep observes newTier == oldTier.
	second := engine.Sweep(context.Background(), now)
	require.Equal(t, 0, second.Dispatched)
	require.Equal(t, 1, second.Skipped)
	require.Equal(t, 1, dispatcher.count())
}

func TestExactlyOneDispatchPerTier(t *testing.T) {
	deadline := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orders := &memOrders{orders: []Order{
		{ID: "o1", RecipientID: "u1", Status: "IN_TRANSIT", DeliveryDeadline: deadline},
	}}
	warnings := newMemWarnings()
	dispatcher := &memDispatcher{}
	engine := testEngine(orders, warnings, dispatcher)

	// Sweep every 5 simulated minutes from 45m before to 15m after the
	// deadline, crossing every tier boundary with several sweeps per tier.
	for offset := -45 * time.Minute; offset <= 15*time.Minute; offset += 5 * time.Minute {
		engine.Sweep(context.Background(), deadline.Add(offset))
	}

	counts := dispatcher.byTier()
	require.Equal(t, 1, counts[TierApproaching])
	require.Equal(t, 1, counts[TierUrgent])
	require.Equal(t, 1, counts[TierOverdue])
	require.Equal(t, 3, dispatcher.count())
	require.Equal(t, TierOverdue, warnings.tier("o1"))
}

func TestTierSkipOnGap(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	// First sweep already finds the order 5 minutes overdue.
	orders := &memOrders{orders: []Order{
		{ID: "late", RecipientID: "u1", Status: "IN_TRANSIT", DeliveryDeadline: now.Add(-5 * time.Minute)},
	}}
	warnings := newMemWarnings()
	dispatcher := &memDispatcher{}

	result := testEngine(orders, warnings, dispatcher).Sweep(context.Background(), now)

	require.Equal(t, 1, result.Dispatched)
	require.Equal(t, 1, dispatcher.count())
	require.Equal(t, TierOverdue, dispatcher.calls[0].Tier)
	require.Equal(t, TierOverdue, warnings.tier("late"))
}

func TestRetryOnDispatchFailure(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orders := &memOrders{orders: []Order{
		{ID: "o1", RecipientID: "u1", Status: "PLACED", DeliveryDeadline: now.Add(5 * time.Minute)},
	}}
	warnings := newMemWarnings()
	dispatcher := &memDispatcher{failNext: 1}
	engine := testEngine(orders, warnings, dispatcher)

	first := engine.Sweep(context.Background(), now)
	require.Equal(t, 0, first.Dispatched)
	require.Equal(t, 1, first.Failed)
	require.Len(t, first.Errors, 1)

	// The record was not advanced, so the same tier is retried.
	require.Equal(t, TierNone, warnings.tier("o1"))

	second := engine.Sweep(context.Background(), now)
	require.Equal(t, 1, second.Dispatched)
	require.Equal(t, TierUrgent, dispatcher.calls[0].Tier)
	require.Equal(t, TierUrgent, warnings.tier("o1"))
}

func TestConcurrentSweepsAdvanceOnce(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orders := &memOrders{orders: []Order{
		{ID: "o1", RecipientID: "u1", Status: "IN_TRANSIT", DeliveryDeadline: now.Add(5 * time.Minute)},
	}}
	warnings := newMemWarnings()
	dispatcher := &memDispatcher{}
	engine := testEngine(orders, warnings, dispatcher)

	// Barrier inside the warning read forces both sweeps to observe the
	// record before either writes, so the compare-and-set must arbitrate.
	var barrier sync.WaitGroup
	barrier.Add(2)
	warnings.getHook = func(string) {
		barrier.Done()
		barrier.Wait()
	}

	var wg sync.WaitGroup
	results := make([]SweepResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Sweep(context.Background(), now)
		}(i)
	}
	wg.Wait()

	dispatched := results[0].Dispatched + results[1].Dispatched
	conflicts := results[0].Conflicts + results[1].Conflicts
	require.Equal(t, 1, dispatched, "exactly one sweep owns the transition")
	require.Equal(t, 1, conflicts, "the loser resolves as a benign conflict")
	require.Equal(t, 0, results[0].Failed+results[1].Failed)

	// The record advanced exactly once.
	require.Equal(t, TierUrgent, warnings.tier("o1"))
}

func TestListFailureAbortsSweep(t *testing.T) {
	orders := &memOrders{err: fmt.Errorf("connection refused")}
	result := testEngine(orders, newMemWarnings(), &memDispatcher{}).
		Sweep(context.Background(), time.Now())

	require.Equal(t, 0, result.Scanned)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "list eligible orders")
}

func TestPerOrderFailureIsolated(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orders := &memOrders{orders: []Order{
		{ID: "bad", RecipientID: "u1", Status: "PLACED", DeliveryDeadline: now.Add(5 * time.Minute)},
		{ID: "good", RecipientID: "u2", Status: "PLACED", DeliveryDeadline: now.Add(5 * time.Minute)},
	}}
	warnings := newMemWarnings()
	warnings.getErr = map[string]error{"bad": fmt.Errorf("store unavailable")}
	dispatcher := &memDispatcher{}

	result := testEngine(orders, warnings, dispatcher).Sweep(context.Background(), now)

	require.Equal(t, 1, result.Failed)
	require.Equal(t, 1, result.Dispatched)
	require.Equal(t, "good", dispatcher.calls[0].OrderID)
}

func TestOutcomeHook(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orders := &memOrders{orders: []Order{
		{ID: "o1", RecipientID: "u1", Status: "PLACED", DeliveryDeadline: now.Add(5 * time.Minute)},
	}}

	var mu sync.Mutex
	outcomes := make(map[string]int)
	engine := testEngine(orders, newMemWarnings(), &memDispatcher{},
		WithOutcomeHook(func(outcome string, tier Tier) {
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}))

	engine.Sweep(context.Background(), now)
	require.Equal(t, map[string]int{"dispatched": 1}, outcomes)
}
