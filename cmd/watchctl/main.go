// Command watchctl is the Delivery Watch operator CLI.
//
// Usage:
//
//	watchctl sweep
//	watchctl sweep --at 2026-08-28T17:30:00Z
//	watchctl orders seed --count 20 --within 45m
//	watchctl purge --retention-days 30
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rassdread/homecheff-deliverywatch/internal/config"
	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
	"github.com/rassdread/homecheff-deliverywatch/internal/db"
	"github.com/rassdread/homecheff-deliverywatch/internal/maintenance"
	"github.com/rassdread/homecheff-deliverywatch/internal/push"
	"github.com/rassdread/homecheff-deliverywatch/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "watchctl",
		Short: "HomeCheff Delivery Watch operator CLI",
	}

	root.AddCommand(sweepCmd())
	root.AddCommand(ordersCmd())
	root.AddCommand(purgeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep over eligible orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				now := time.Now()
				if at != "" {
					parsed, err := time.Parse(time.RFC3339, at)
					if err != nil {
						return fmt.Errorf("parse --at: %w", err)
					}
					now = parsed
				}

				engine, cleanup, err := buildEngine(ctx, cfg, pool)
				if err != nil {
					return err
				}
				defer cleanup()

				result := engine.Sweep(ctx, now)
				logger.Info("Sweep finished", "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("sweep error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Simulated sweep instant (RFC3339); empty = now")
	return cmd
}

// buildEngine wires stores and dispatch transports from config.
func buildEngine(ctx context.Context, cfg *config.Config, pool *db.Pool) (*countdown.Engine, func(), error) {
	thresholds := countdown.Thresholds{
		Approaching: cfg.ApproachingWindow,
		Urgent:      cfg.UrgentWindow,
	}
	orders := store.NewOrderStore(pool.Pool, thresholds.Approaching)
	warnings := store.NewWarningStore(pool.Pool)
	dispatchLog := store.NewDispatchLog(pool.Pool)

	publisher, err := push.NewRedisPublisher(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	webhook := push.NewWebhookSender(cfg.WebhookURL, cfg.WebhookAuthKey, logger)
	dispatcher := push.NewFanout(publisher, webhook, dispatchLog, cfg.DispatchTimeout, logger)

	engine := countdown.NewEngine(orders, warnings, dispatcher, thresholds, logger,
		countdown.WithWorkers(cfg.SweepWorkers),
		countdown.WithOrderTimeout(cfg.PerOrderTimeout),
	)
	cleanup := func() { _ = publisher.Close() }
	return engine, cleanup, nil
}

// --------------------------------------------------------------------------
// orders command
// --------------------------------------------------------------------------

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Order tooling",
	}
	cmd.AddCommand(ordersSeedCmd())
	return cmd
}

func ordersSeedCmd() *cobra.Command {
	var (
		count  int
		within time.Duration
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo orders with deadlines spread over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				orders := store.NewOrderStore(pool.Pool, cfg.ApproachingWindow)
				statuses := config.ActiveStatuses

				now := time.Now()
				for i := 0; i < count; i++ {
					// Spread from slightly overdue to the far edge of the
					// window so every tier is represented.
					offset := -5*time.Minute + time.Duration(rand.Int63n(int64(within+5*time.Minute)))
					order := countdown.Order{
						ID:               uuid.NewString(),
						RecipientID:      fmt.Sprintf("demo-user-%02d", i%5),
						Status:           statuses[i%len(statuses)],
						DeliveryDeadline: now.Add(offset),
					}
					if err := orders.Upsert(ctx, order); err != nil {
						return err
					}
				}
				logger.Info("Demo orders seeded", "count", count, "within", within)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "Number of demo orders")
	cmd.Flags().DurationVar(&within, "within", 45*time.Minute, "Deadline spread window")
	return cmd
}

// --------------------------------------------------------------------------
// purge command
// --------------------------------------------------------------------------

func purgeCmd() *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove warning records and audit rows of old terminal orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				maintenance.Purge(ctx, pool.Pool, retentionDays, logger)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 30, "Retention window in days")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// run handles config loading, DB connection, and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
