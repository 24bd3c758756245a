package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checker Metrics
var (
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "investmon",
		Subsystem: "checker",
		Name:      "checks_total",
		Help:      "Total number of health checks by raw status",
	}, []string{"status"})

	CheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "investmon",
		Subsystem: "checker",
		Name:      "check_latency_seconds",
		Help:      "Latency of individual endpoint health checks",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	StrikesRetained = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "investmon",
		Subsystem: "checker",
		Name:      "strikes_retained_total",
		Help:      "Adverse results suppressed by the strike policy",
	})
)

// Sweep Metrics
var (
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "investmon",
		Subsystem: "sweep",
		Name:      "duration_seconds",
		Help:      "Duration of full catalog sweeps",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "investmon",
		Subsystem: "sweep",
		Name:      "sweeps_total",
		Help:      "Total number of sweeps started",
	})
)

// Stream Metrics
var (
	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "investmon",
		Subsystem: "stream",
		Name:      "subscribers",
		Help:      "Number of currently attached SSE subscribers",
	})

	StreamSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "investmon",
		Subsystem: "stream",
		Name:      "sessions_active",
		Help:      "Number of live stream consumer sessions",
	})
)
