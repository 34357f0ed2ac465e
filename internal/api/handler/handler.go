// Package handler provides HTTP handlers for all API endpoints. Handlers
// query Postgres directly via the store layer — no extra service layer.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rassdread/homecheff-deliverywatch/internal/api/respond"
	"github.com/rassdread/homecheff-deliverywatch/internal/config"
	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
	"github.com/rassdread/homecheff-deliverywatch/internal/store"
)

// SweepRunner triggers a sweep at an injected instant. Implemented by
// countdown.Engine.
type SweepRunner interface {
	Sweep(ctx context.Context, now time.Time) countdown.SweepResult
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool       *pgxpool.Pool
	cfg        *config.Config
	runner     SweepRunner
	orders     *store.OrderStore
	warnings   *store.WarningStore
	dispatches *store.DispatchLog
	thresholds countdown.Thresholds
}

// New creates a Handler with shared dependencies.
func New(pool *pgxpool.Pool, cfg *config.Config, runner SweepRunner, orders *store.OrderStore, warnings *store.WarningStore, dispatches *store.DispatchLog, thresholds countdown.Thresholds) *Handler {
	return &Handler{
		pool:       pool,
		cfg:        cfg,
		runner:     runner,
		orders:     orders,
		warnings:   warnings,
		dispatches: dispatches,
		thresholds: thresholds,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns service name, version, status, and warning thresholds.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "HomeCheff Delivery Watch",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"thresholds": map[string]string{
			"approaching": h.thresholds.Approaching.String(),
			"urgent":      h.thresholds.Urgent.String(),
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	err := h.pool.QueryRow(r.Context(), "health_check").Scan(&n)
	if err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
