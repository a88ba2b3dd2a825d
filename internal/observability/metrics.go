// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	CyclesSkipped prometheus.Counter

	// Trading metrics
	DecisionsTotal    *prometheus.CounterVec
	SessionsTotal     *prometheus.CounterVec
	RealizedProfit    prometheus.Gauge
	PositionState     prometheus.Gauge
	LastObservedPrice prometheus.Gauge

	// Delivery and storage metrics
	NotificationErrors prometheus.Counter
	CommitConflicts    prometheus.Counter

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trading_bot"
	}

	return &Metrics{
		// Cycle metrics
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of trading cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Trading cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		CyclesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "skipped_total",
			Help:      "Total number of trigger requests rejected while a cycle was in flight",
		}),

		// Trading metrics
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "decisions_total",
			Help:      "Total number of decisions by action",
		}, []string{"action"}),
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "sessions_total",
			Help:      "Total number of recorded sessions by action and outcome",
		}, []string{"action", "outcome"}),
		RealizedProfit: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_profit_quote",
			Help:      "Cumulative realized profit in quote asset units",
		}),
		PositionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "position_long",
			Help:      "1 when the position is long, 0 when flat",
		}),
		LastObservedPrice: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "last_observed_price",
			Help:      "Most recent observed base/quote price",
		}),

		// Delivery and storage metrics
		NotificationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "errors_total",
			Help:      "Total number of failed notification deliveries",
		}),
		CommitConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "commit_conflicts_total",
			Help:      "Total number of session commits rejected by the optimistic position check",
		}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful trading cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
