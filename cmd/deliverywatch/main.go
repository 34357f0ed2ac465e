// Command deliverywatch is the HomeCheff delivery countdown service: it
// sweeps pending orders, classifies remaining delivery time into urgency
// tiers, and dispatches each tier crossing to the recipient exactly once.
//
// Usage:
//
//	deliverywatch
//	API_PORT=8080 deliverywatch

// @title HomeCheff Delivery Watch API
// @version 1.0.0
// @description Delivery countdown and order-status warning service.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name HomeCheff
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/rassdread/homecheff-deliverywatch/internal/api"
	"github.com/rassdread/homecheff-deliverywatch/internal/api/handler"
	"github.com/rassdread/homecheff-deliverywatch/internal/config"
	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
	"github.com/rassdread/homecheff-deliverywatch/internal/db"
	"github.com/rassdread/homecheff-deliverywatch/internal/ingest"
	"github.com/rassdread/homecheff-deliverywatch/internal/maintenance"
	"github.com/rassdread/homecheff-deliverywatch/internal/metrics"
	"github.com/rassdread/homecheff-deliverywatch/internal/push"
	"github.com/rassdread/homecheff-deliverywatch/internal/store"
	"github.com/rassdread/homecheff-deliverywatch/internal/sweeper"

	_ "github.com/rassdread/homecheff-deliverywatch/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	metrics.Register()

	// Stores
	thresholds := countdown.Thresholds{
		Approaching: cfg.ApproachingWindow,
		Urgent:      cfg.UrgentWindow,
	}
	orders := store.NewOrderStore(pool.Pool, thresholds.Approaching)
	warnings := store.NewWarningStore(pool.Pool)
	dispatchLog := store.NewDispatchLog(pool.Pool)

	// Dispatch transports
	publisher, err := push.NewRedisPublisher(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close()
		logger.Info("Realtime warning publisher enabled", "channel", cfg.RedisChannel)
	} else {
		logger.Info("Realtime warning publisher disabled (no REDIS_URL)")
	}

	webhook := push.NewWebhookSender(cfg.WebhookURL, cfg.WebhookAuthKey, logger)
	if webhook != nil {
		logger.Info("Warning webhook enabled", "url", cfg.WebhookURL)
	}

	dispatcher := push.NewFanout(publisher, webhook, dispatchLog, cfg.DispatchTimeout, logger)

	// Countdown engine
	engine := countdown.NewEngine(orders, warnings, dispatcher, thresholds, logger,
		countdown.WithWorkers(cfg.SweepWorkers),
		countdown.WithOrderTimeout(cfg.PerOrderTimeout),
		countdown.WithOutcomeHook(func(outcome string, tier countdown.Tier) {
			metrics.SweepOutcomes.WithLabelValues(outcome, tier.String()).Inc()
		}),
	)

	// Start the sweep loop
	go sweeper.Start(ctx, engine, cfg.SweepInterval, logger)

	// Start order event ingestion (if NATS is configured)
	if cfg.NATSURL != "" {
		sub := ingest.NewSubscriber(cfg.NATSURL, cfg.NATSSubject, cfg.NATSQueue, orders, logger)
		go sub.Start(ctx)
	} else {
		logger.Info("Order ingest disabled (no NATS_URL)")
	}

	// Start maintenance ticker
	go maintenance.Start(ctx, pool.Pool, maintenance.Config{
		PurgeInterval: cfg.PurgeInterval,
		RetentionDays: cfg.RetentionDays,
	}, logger)

	// Create router
	h := handler.New(pool.Pool, cfg, engine, orders, warnings, dispatchLog, thresholds)
	router := api.NewRouter(h, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Delivery Watch API",
			"addr", addr,
			"environment", cfg.Environment,
			"sweep_interval", cfg.SweepInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
