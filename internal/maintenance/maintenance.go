// Package maintenance runs periodic background tasks as Go tickers. All
// scheduled work is driven from Go since the service is already a
// persistent, long-running process.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	PurgeInterval time.Duration // Warning records and audit rows of terminal orders
	RetentionDays int
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		PurgeInterval: 1 * time.Hour,
		RetentionDays: 30,
	}
}

// Start launches the maintenance ticker. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	if cfg.PurgeInterval <= 0 {
		logger.Info("Maintenance disabled")
		return
	}

	logger.Info("Maintenance ticker started",
		"purge_interval", cfg.PurgeInterval,
		"retention_days", cfg.RetentionDays)

	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			Purge(ctx, pool, cfg.RetentionDays, logger)
		case <-ctx.Done():
			logger.Info("Maintenance ticker stopped")
			return
		}
	}
}

// Purge removes bookkeeping for orders that reached a terminal status longer
// than the retention window ago. Warning records of live orders are never
// touched: the tier monotonicity guarantee depends on them.
func Purge(ctx context.Context, pool *pgxpool.Pool, retentionDays int, logger *slog.Logger) {
	retention := fmt.Sprintf("%d days", retentionDays)

	tag, err := pool.Exec(ctx, "purge_terminal_warnings", retention)
	if err != nil {
		logger.Warn("Purge: failed to remove terminal warning records", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Purge: removed terminal warning records", "count", tag.RowsAffected())
	}

	tag, err = pool.Exec(ctx, "purge_old_dispatches", retention)
	if err != nil {
		logger.Warn("Purge: failed to remove old dispatch rows", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Purge: removed old dispatch rows", "count", tag.RowsAffected())
	}
}
