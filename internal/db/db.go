// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rassdread/homecheff-deliverywatch/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API, sweep, and
// ingestion layers use. Prepared statements eliminate parse overhead on
// every sweep cycle.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Sweep: orders with an active delivery window. The horizon bound
		// excludes orders that would classify as NONE anyway.
		"list_eligible_orders": `
			SELECT id, recipient_id, status, delivery_deadline
			FROM orders
			WHERE status IN ('PLACED', 'CONFIRMED', 'IN_TRANSIT')
			  AND delivery_deadline IS NOT NULL
			  AND delivery_deadline <= $1
			ORDER BY delivery_deadline`,

		// Warning records
		"get_warning": `
			SELECT order_id, tier, last_notified_at
			FROM delivery_warnings
			WHERE order_id = $1`,

		// Conditional upsert: succeeds only when the stored tier still
		// matches the expected previous tier. Zero rows = lost the race.
		"cas_warning_tier": `
			INSERT INTO delivery_warnings (order_id, tier, last_notified_at, updated_at)
			VALUES ($1, $3, $4, NOW())
			ON CONFLICT (order_id) DO UPDATE
			SET tier = $3, last_notified_at = $4, updated_at = NOW()
			WHERE delivery_warnings.tier = $2`,

		// Dispatch audit log
		"insert_dispatch": `
			INSERT INTO dispatch_log (order_id, recipient_id, tier, remaining_seconds, dispatched_at)
			VALUES ($1, $2, $3, $4, $5)`,
		"recent_dispatches": `
			SELECT id, order_id, recipient_id, tier, remaining_seconds, dispatched_at
			FROM dispatch_log
			ORDER BY dispatched_at DESC
			LIMIT $1`,

		// Ingestion: order status events from the marketplace app
		"upsert_order": `
			INSERT INTO orders (id, recipient_id, status, delivery_deadline, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (id) DO UPDATE
			SET recipient_id = EXCLUDED.recipient_id,
			    status = EXCLUDED.status,
			    delivery_deadline = EXCLUDED.delivery_deadline,
			    updated_at = NOW()`,

		// Maintenance: purge bookkeeping for terminal orders
		"purge_terminal_warnings": `
			DELETE FROM delivery_warnings dw
			USING orders o
			WHERE o.id = dw.order_id
			  AND o.status IN ('DELIVERED', 'CANCELLED')
			  AND dw.updated_at < NOW() - $1::interval`,
		"purge_old_dispatches": `
			DELETE FROM dispatch_log
			WHERE dispatched_at < NOW() - $1::interval`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
