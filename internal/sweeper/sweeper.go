// Package sweeper drives the countdown engine on a fixed interval.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
	"github.com/rassdread/homecheff-deliverywatch/internal/metrics"
)

// Runner is the sweep entry point. Implemented by countdown.Engine.
type Runner interface {
	Sweep(ctx context.Context, now time.Time) countdown.SweepResult
}

// Start runs the sweep loop until ctx is cancelled. Intended to be called
// with `go`. Sweeps run synchronously, so a slow sweep delays the next tick
// rather than overlapping it; concurrent triggers from the HTTP endpoint
// remain safe through the warning store's compare-and-set.
func Start(ctx context.Context, runner Runner, interval time.Duration, logger *slog.Logger) {
	logger.Info("Sweep loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			RunOnce(ctx, runner, time.Now())
		case <-ctx.Done():
			logger.Info("Sweep loop stopped")
			return
		}
	}
}

// RunOnce executes a single sweep at the given instant and records metrics.
// Shared by the ticker loop, the HTTP trigger, and the CLI.
func RunOnce(ctx context.Context, runner Runner, now time.Time) countdown.SweepResult {
	result := runner.Sweep(ctx, now)

	metrics.SweepsTotal.Inc()
	metrics.SweepDuration.Observe(result.Duration.Seconds())
	metrics.OrdersScanned.Add(float64(result.Scanned))
	return result
}
