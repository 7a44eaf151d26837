// Package observability wires Prometheus instrumentation for the inference
// engine: request telemetry, cache behavior, and classifier activity.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the API.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec // labels: method, endpoint, status
	RequestCount    *prometheus.CounterVec   // labels: method, endpoint, status

	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss,coalesced}
	CacheCorruption prometheus.Counter
	CacheEntries    prometheus.Gauge

	Predictions    *prometheus.CounterVec // labels: mode={empirical,model}, outcome={success,error}
	WindowSample   prometheus.Histogram
	ClassifierMode *prometheus.GaugeVec // labels: mode; 1 for the active strategy
}

// NewMetrics creates and registers all engine metrics on a private registry
// so tests can construct multiple instances without collisions.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "climarisk",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "endpoint", "status"}),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climarisk",
			Name:      "requests_total",
			Help:      "Total API requests by method, endpoint, and status.",
		}, []string{"method", "endpoint", "status"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climarisk",
			Name:      "cache_lookups_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		CacheCorruption: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climarisk",
			Name:      "cache_corruption_total",
			Help:      "Stored cache entries that failed to decode and were recomputed.",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climarisk",
			Name:      "cache_entries",
			Help:      "Live entries in the prediction cache.",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climarisk",
			Name:      "predictions_total",
			Help:      "Single-day predictions by classifier mode and outcome.",
		}, []string{"mode", "outcome"}),
		WindowSample: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climarisk",
			Name:      "window_sample_years",
			Help:      "Matched years per analog window.",
			Buckets:   []float64{1, 3, 5, 8, 10, 12, 15, 20},
		}),
		ClassifierMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "climarisk",
			Name:      "classifier_mode",
			Help:      "1 for the active classifier strategy.",
		}, []string{"mode"}),
	}

	reg.MustRegister(
		m.RequestDuration,
		m.RequestCount,
		m.CacheLookups,
		m.CacheCorruption,
		m.CacheEntries,
		m.Predictions,
		m.WindowSample,
		m.ClassifierMode,
	)

	return m
}

// RecordRequest satisfies the API chassis MetricsCollector interface.
func (m *Metrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	m.RequestCount.WithLabelValues(method, endpoint, status).Inc()
}

// SetClassifierMode marks the active strategy.
func (m *Metrics) SetClassifierMode(mode string) {
	m.ClassifierMode.WithLabelValues(mode).Set(1)
}

// Handler exposes the registry for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
