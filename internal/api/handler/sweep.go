package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rassdread/homecheff-deliverywatch/internal/api/respond"
	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
	"github.com/rassdread/homecheff-deliverywatch/internal/sweeper"
)

// RunSweep triggers one sweep immediately.
// @Summary Trigger a sweep
// @Description Runs one full evaluation pass over eligible orders. The optional `at` parameter (RFC3339) injects a simulated instant; omitted means now.
// @Tags sweep
// @Produce json
// @Param at query string false "Simulated sweep instant (RFC3339)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/sweep [post]
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_PARAM", "at must be RFC3339")
			return
		}
		now = parsed
	}

	result := sweeper.RunOnce(r.Context(), h.runner, now)
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"swept_at":   now.UTC().Format(time.RFC3339),
		"scanned":    result.Scanned,
		"dispatched": result.Dispatched,
		"skipped":    result.Skipped,
		"conflicts":  result.Conflicts,
		"failed":     result.Failed,
		"duration":   result.Duration.Round(time.Millisecond).String(),
		"errors":     result.Errors,
	})
}

// GetUpcoming lists orders inside the warning horizon.
// @Summary Upcoming deliveries
// @Description Returns eligible orders with their remaining time and current tier classification.
// @Tags orders
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/v1/orders/upcoming [get]
func (h *Handler) GetUpcoming(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	orders, err := h.orders.ListEligible(r.Context(), now)
	if err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Failed to list orders")
		return
	}

	type upcoming struct {
		OrderID          string `json:"order_id"`
		RecipientID      string `json:"recipient_id"`
		Status           string `json:"status"`
		DeliveryDeadline string `json:"delivery_deadline"`
		RemainingSeconds int64  `json:"remaining_seconds"`
		Tier             string `json:"tier"`
	}

	items := make([]upcoming, 0, len(orders))
	for _, o := range orders {
		remaining := countdown.RemainingTime(o, now)
		items = append(items, upcoming{
			OrderID:          o.ID,
			RecipientID:      o.RecipientID,
			Status:           o.Status,
			DeliveryDeadline: o.DeliveryDeadline.UTC().Format(time.RFC3339),
			RemainingSeconds: int64(remaining.Seconds()),
			Tier:             h.thresholds.ClassifyTier(remaining).String(),
		})
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"as_of":  now.UTC().Format(time.RFC3339),
		"count":  len(items),
		"orders": items,
	})
}

// GetWarning returns the warning record for an order.
// @Summary Warning record
// @Description Returns the highest tier already notified for an order.
// @Tags warnings
// @Produce json
// @Param orderID path string true "Order ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/warnings/{orderID} [get]
func (h *Handler) GetWarning(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	rec, ok, err := h.warnings.Get(r.Context(), orderID)
	if err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Failed to read warning record")
		return
	}
	if !ok {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No warning record for order")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"order_id":         rec.OrderID,
		"tier":             rec.Tier.String(),
		"last_notified_at": rec.LastNotifiedAt.UTC().Format(time.RFC3339),
	})
}

// GetDispatches returns recent dispatch audit rows.
// @Summary Recent dispatches
// @Description Returns the most recent warning dispatches, newest first.
// @Tags warnings
// @Produce json
// @Param limit query int false "Max rows (default 50, max 200)"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/v1/dispatches [get]
func (h *Handler) GetDispatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 200 {
		limit = 200
	}

	entries, err := h.dispatches.Recent(r.Context(), limit)
	if err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Failed to read dispatch log")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"count":      len(entries),
		"dispatches": entries,
	})
}
