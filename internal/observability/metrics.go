// Package observability holds the Prometheus instrumentation shared by the
// forecast pipeline, the profile API, and the delivery path.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for RideCast.
type Metrics struct {
	// Forecast acquisition metrics.
	ProviderFetches    *prometheus.CounterVec   // labels: provider, outcome={success,no_data,error}
	ProviderDuration   *prometheus.HistogramVec // labels: provider
	FallbacksUsed      *prometheus.CounterVec   // labels: provider
	CollectionSize     prometheus.Histogram
	CollectionDuration prometheus.Histogram

	// Evaluation and delivery metrics.
	Decisions       *prometheus.CounterVec // labels: should_ride={true,false}
	CyclesCompleted *prometheus.CounterVec // labels: outcome={success,error,skipped}
	EmailsSent      *prometheus.CounterVec // labels: outcome={success,error,suppressed}

	// API metrics.
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route
}

func newMetrics(namespace string) *Metrics {
	return &Metrics{
		ProviderFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetches_total",
			Help:      "Provider fetch invocations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_seconds",
			Help:      "Wall-clock duration of one provider fetch, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		FallbacksUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Forecasts resolved outside the exact requested window.",
		}, []string{"provider"}),
		CollectionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collection_forecasts",
			Help:      "Number of forecasts gathered per commute leg.",
			Buckets:   []float64{0, 1, 2, 4, 8, 12, 16, 24},
		}),
		CollectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collection_duration_seconds",
			Help:      "Duration of one aggregated collection pass for a leg.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Round-trip decisions by verdict.",
		}, []string{"should_ride"}),
		CyclesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Per-rider evaluation cycles by outcome.",
		}, []string{"outcome"}),
		EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Recommendation emails by delivery outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Profile API requests by method, route, and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Profile API request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// NewMetrics creates all RideCast metrics and registers them with the default
// Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	m := newMetrics(namespace)
	prometheus.MustRegister(
		m.ProviderFetches,
		m.ProviderDuration,
		m.FallbacksUsed,
		m.CollectionSize,
		m.CollectionDuration,
		m.Decisions,
		m.CyclesCompleted,
		m.EmailsSent,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics("ridecast_test")
}
