// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/deliverywatch and cmd/watchctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Order statuses — single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	StatusPlaced    = "PLACED"
	StatusConfirmed = "CONFIRMED"
	StatusInTransit = "IN_TRANSIT"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// ActiveStatuses are the order statuses considered by the countdown sweep.
// DELIVERED and CANCELLED orders are terminal and never swept.
var ActiveStatuses = []string{StatusPlaced, StatusConfirmed, StatusInTransit}

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Delivery warning thresholds. Tier boundaries are product
	// configuration, not hard-coded law.
	ApproachingWindow time.Duration // remaining <= this => APPROACHING
	UrgentWindow      time.Duration // remaining <= this => URGENT

	// Sweep
	SweepInterval   time.Duration
	SweepWorkers    int
	PerOrderTimeout time.Duration

	// Dispatch transports
	RedisURL        string // empty = realtime publishing disabled
	RedisChannel    string
	WebhookURL      string // empty = webhook delivery disabled
	WebhookAuthKey  string
	DispatchTimeout time.Duration

	// Order event ingestion
	NATSURL     string // empty = ingestion disabled
	NATSSubject string
	NATSQueue   string

	// Maintenance
	PurgeInterval time.Duration
	RetentionDays int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		ApproachingWindow: time.Duration(envInt("WARN_APPROACHING_WINDOW_MINUTES", 30)) * time.Minute,
		UrgentWindow:      time.Duration(envInt("WARN_URGENT_WINDOW_MINUTES", 10)) * time.Minute,

		SweepInterval:   time.Duration(envInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		SweepWorkers:    envInt("SWEEP_WORKERS", 4),
		PerOrderTimeout: time.Duration(envInt("SWEEP_ORDER_TIMEOUT_SECONDS", 5)) * time.Second,

		RedisURL:        envOr("REDIS_URL", ""),
		RedisChannel:    envOr("REDIS_WARNING_CHANNEL", "homecheff:delivery-warnings"),
		WebhookURL:      envOr("WARNING_WEBHOOK_URL", ""),
		WebhookAuthKey:  envOr("WARNING_WEBHOOK_KEY", ""),
		DispatchTimeout: time.Duration(envInt("DISPATCH_TIMEOUT_SECONDS", 5)) * time.Second,

		NATSURL:     envOr("NATS_URL", ""),
		NATSSubject: envOr("NATS_ORDER_SUBJECT", "homecheff.orders.status"),
		NATSQueue:   envOr("NATS_QUEUE_GROUP", "deliverywatch"),

		PurgeInterval: time.Duration(envInt("PURGE_INTERVAL_MINUTES", 60)) * time.Minute,
		RetentionDays: envInt("WARNING_RETENTION_DAYS", 30),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
