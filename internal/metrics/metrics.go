// Package metrics provides Prometheus metrics for archive-verify.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for archive-verify.
type Metrics struct {
	// Reconciliation run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Attempt classification metrics
	AttemptsVerified   prometheus.Counter
	AttemptsSuperseded prometheus.Counter
	AttemptsCritical   prometheus.Counter
	PendingAttempts    prometheus.Gauge

	// Provider metrics
	ProviderFailures prometheus.Counter
	BreakerTrips     prometheus.Counter

	// Persistence metrics
	CatalogRetries *prometheus.CounterVec
	CatalogErrors  *prometheus.CounterVec

	// Upload metrics
	BundlesUploaded prometheus.Counter
	BundleBytes     prometheus.Histogram
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "archive_verify"
	}

	m := &Metrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total reconciliation runs by closeout outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of one reconciliation run",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
			},
		),
		AttemptsVerified: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_verified_total",
				Help:      "Upload attempts confirmed at the terminal ingest stage",
			},
		),
		AttemptsSuperseded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_superseded_total",
				Help:      "Unverified attempts suppressed by a verified duplicate",
			},
		),
		AttemptsCritical: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_critical_total",
				Help:      "Attempts with a non-retryable archive fault",
			},
		),
		PendingAttempts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_attempts",
				Help:      "Attempts still unverified after the last run",
			},
		),
		ProviderFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_failures_total",
				Help:      "Failed ingest status queries",
			},
		),
		BreakerTrips: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_trips_total",
				Help:      "Runs aborted early by consecutive provider failures",
			},
		),
		CatalogRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_retries_total",
				Help:      "Retried status store writes by operation",
			},
			[]string{"operation"},
		),
		CatalogErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_errors_total",
				Help:      "Failed status store operations by operation",
			},
			[]string{"operation"},
		),
		BundlesUploaded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundles_uploaded_total",
				Help:      "Upload bundles staged for archive ingest",
			},
		),
		BundleBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bundle_bytes",
				Help:      "Size of staged upload bundles in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 12), // 1KB to ~16GB
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}
