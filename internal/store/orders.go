// Package store implements the countdown engine's persistence ports on
// Postgres via pgxpool prepared statements (registered in internal/db).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
)

// OrderStore reads the marketplace order table. Read-only from the engine's
// perspective; writes happen only through the ingest adapter.
type OrderStore struct {
	pool    *pgxpool.Pool
	horizon time.Duration // approaching window; orders farther out are NONE
}

// NewOrderStore creates a Postgres-backed order store. The horizon should be
// the approaching-tier window so the SQL filter stays aligned with the
// classifier.
func NewOrderStore(pool *pgxpool.Pool, horizon time.Duration) *OrderStore {
	return &OrderStore{pool: pool, horizon: horizon}
}

// ListEligible returns orders in an active status whose deadline falls within
// the warning horizon. Orders beyond the horizon would classify as NONE and
// produce no transition, so they are excluded in SQL.
func (s *OrderStore) ListEligible(ctx context.Context, now time.Time) ([]countdown.Order, error) {
	rows, err := s.pool.Query(ctx, "list_eligible_orders", now.Add(s.horizon))
	if err != nil {
		return nil, fmt.Errorf("list eligible orders: %w", err)
	}
	defer rows.Close()

	var orders []countdown.Order
	for rows.Next() {
		var o countdown.Order
		if err := rows.Scan(&o.ID, &o.RecipientID, &o.Status, &o.DeliveryDeadline); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Upsert stores an order row from an ingested status event.
func (s *OrderStore) Upsert(ctx context.Context, o countdown.Order) error {
	var deadline interface{}
	if !o.DeliveryDeadline.IsZero() {
		deadline = o.DeliveryDeadline
	}
	_, err := s.pool.Exec(ctx, "upsert_order", o.ID, o.RecipientID, o.Status, deadline)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}
	return nil
}

var _ countdown.OrderStore = (*OrderStore)(nil)
