package timeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TimelinesBuiltTotal tracks timelines built from source rows.
	TimelinesBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_timelines_built_total",
		Help: "Total number of event timelines built",
	})

	// TimelineBuildSeconds tracks fetch-and-align latency per timeline.
	TimelineBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probedge_timeline_build_seconds",
		Help:    "Time to fetch and align one event timeline",
		Buckets: prometheus.DefBuckets,
	})
)
