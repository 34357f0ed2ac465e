// Package metrics holds Prometheus collectors for the countdown service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliverywatch_sweeps_total",
			Help: "Total number of sweep runs",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deliverywatch_sweep_duration_seconds",
			Help:    "Duration of sweep runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	OrdersScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliverywatch_orders_scanned_total",
			Help: "Total number of orders evaluated by sweeps",
		},
	)

	// Outcome is one of: dispatched, skipped, conflict, failed.
	SweepOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverywatch_sweep_outcomes_total",
			Help: "Per-order sweep outcomes",
		},
		[]string{"outcome", "tier"},
	)

	OrderEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliverywatch_order_events_total",
			Help: "Total number of order status events received",
		},
	)

	OrderEventsInvalidTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliverywatch_order_events_invalid_total",
			Help: "Total number of rejected order status events",
		},
	)
)

// Register registers all Prometheus metrics.
func Register() {
	prometheus.MustRegister(
		SweepsTotal,
		SweepDuration,
		OrdersScanned,
		SweepOutcomes,
		OrderEventsTotal,
		OrderEventsInvalidTotal,
	)
}
