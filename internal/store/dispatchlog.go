package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
)

// DispatchEntry is one row of the append-only warning audit log.
type DispatchEntry struct {
	ID               int64     `json:"id"`
	OrderID          string    `json:"order_id"`
	RecipientID      string    `json:"recipient_id"`
	Tier             string    `json:"tier"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	DispatchedAt     time.Time `json:"dispatched_at"`
}

// DispatchLog records emitted warnings for operator inspection. Writes are
// best effort: losing an audit row never blocks or retries a dispatch.
type DispatchLog struct {
	pool *pgxpool.Pool
}

// NewDispatchLog creates a Postgres-backed dispatch log.
func NewDispatchLog(pool *pgxpool.Pool) *DispatchLog {
	return &DispatchLog{pool: pool}
}

// Record appends an audit row for a dispatched decision.
func (l *DispatchLog) Record(ctx context.Context, d countdown.Decision, at time.Time) error {
	_, err := l.pool.Exec(ctx, "insert_dispatch",
		d.OrderID, d.RecipientID, int16(d.Tier), int64(d.Remaining.Seconds()), at)
	if err != nil {
		return fmt.Errorf("insert dispatch log: %w", err)
	}
	return nil
}

// Recent returns the latest audit rows, newest first.
func (l *DispatchLog) Recent(ctx context.Context, limit int) ([]DispatchEntry, error) {
	rows, err := l.pool.Query(ctx, "recent_dispatches", limit)
	if err != nil {
		return nil, fmt.Errorf("recent dispatches: %w", err)
	}
	defer rows.Close()

	var entries []DispatchEntry
	for rows.Next() {
		var e DispatchEntry
		var tier int16
		if err := rows.Scan(&e.ID, &e.OrderID, &e.RecipientID, &tier, &e.RemainingSeconds, &e.DispatchedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch row: %w", err)
		}
		e.Tier = countdown.Tier(tier).String()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
