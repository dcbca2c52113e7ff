// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsscanner"

var (
	// FetchTotal counts source fetches by outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Total number of source fetches",
		},
		[]string{"source", "status"},
	)

	// ArticlesTotal counts processed articles by ingestion path and outcome.
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_processed_total",
			Help:      "Total number of articles scored and persisted",
		},
		[]string{"path", "outcome"},
	)

	// ErrorsTotal counts contained errors by kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of contained errors",
		},
		[]string{"kind"},
	)

	// CycleDuration measures poll cycle duration.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of poll cycles in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// SkippedTicks counts ticks suppressed because a cycle was still running.
	SkippedTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_skipped_total",
			Help:      "Total number of poll ticks skipped while a cycle was running",
		},
	)

	// Polling is 1 while a poll cycle runs.
	Polling = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_cycle_running",
			Help:      "Poll scheduler state (1 = polling, 0 = idle)",
		},
	)
)

// Error kinds.
const (
	KindFetch          = "fetch"
	KindClassification = "classification"
	KindPersistence    = "persistence"
	KindValidation     = "validation"
)

// RecordFetch records one source fetch.
func RecordFetch(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		ErrorsTotal.WithLabelValues(KindFetch).Inc()
	}
	FetchTotal.WithLabelValues(source, status).Inc()
}

// RecordArticle records one article outcome: "filtered", "unfiltered", "unscored" or "failed".
func RecordArticle(path, outcome string) {
	ArticlesTotal.WithLabelValues(path, outcome).Inc()
}

// RecordError records a contained error.
func RecordError(kind string) {
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveCycle records a finished poll cycle.
func ObserveCycle(seconds float64) {
	CycleDuration.Observe(seconds)
}
