package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CombinationsEvaluatedTotal counts combinations fully evaluated
	// across all three splits.
	CombinationsEvaluatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_search_combinations_evaluated_total",
		Help: "Total number of grid combinations evaluated",
	})

	// EventSkipsTotal counts per-event failures that were skipped
	// rather than aborting the run.
	EventSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_search_event_skips_total",
		Help: "Total number of events skipped due to per-event errors",
	})

	// ActiveWorkers reports the size of the worker pool while a run is
	// in progress.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "probedge_search_active_workers",
		Help: "Number of worker goroutines in the current grid search",
	})

	// RunDurationSeconds observes wall-clock time of whole runs.
	RunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probedge_search_run_duration_seconds",
		Help:    "Wall clock duration of grid search runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	})
)
