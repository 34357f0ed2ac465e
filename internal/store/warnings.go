package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
)

// WarningStore persists per-order warning records in delivery_warnings.
// The table is owned exclusively by the countdown engine.
type WarningStore struct {
	pool *pgxpool.Pool
}

// NewWarningStore creates a Postgres-backed warning store.
func NewWarningStore(pool *pgxpool.Pool) *WarningStore {
	return &WarningStore{pool: pool}
}

// Get returns the warning record for an order. The second return value is
// false when no record exists yet; callers treat that as tier NONE.
func (s *WarningStore) Get(ctx context.Context, orderID string) (countdown.WarningRecord, bool, error) {
	var rec countdown.WarningRecord
	var tier int16
	err := s.pool.QueryRow(ctx, "get_warning", orderID).Scan(&rec.OrderID, &tier, &rec.LastNotifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return countdown.WarningRecord{}, false, nil
	}
	if err != nil {
		return countdown.WarningRecord{}, false, fmt.Errorf("get warning %s: %w", orderID, err)
	}
	rec.Tier = countdown.Tier(tier)
	return rec, true, nil
}

// CompareAndSetTier advances the record to newTier only if the stored tier
// still equals expectedOld (an absent row counts as NONE). A conditional
// upsert keeps this a single round trip: the DO UPDATE WHERE clause rejects
// a stale writer, and an insert race resolves through the same path.
func (s *WarningStore) CompareAndSetTier(ctx context.Context, orderID string, expectedOld, newTier countdown.Tier, notifiedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, "cas_warning_tier",
		orderID, int16(expectedOld), int16(newTier), notifiedAt)
	if err != nil {
		return fmt.Errorf("cas warning tier %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return countdown.ErrTierConflict
	}
	return nil
}

var _ countdown.WarningStore = (*WarningStore)(nil)
