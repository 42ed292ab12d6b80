package align

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlignPointsTotal tracks raw snapshot rows seen by the aligner.
	AlignPointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_align_rows_total",
		Help: "Total number of raw snapshot rows processed",
	})

	// AlignPointsDroppedTotal tracks dropped rows by reason.
	AlignPointsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probedge_align_rows_dropped_total",
			Help: "Total number of snapshot rows dropped during alignment",
		},
		[]string{"reason"},
	)

	// AlignCollapsedQuotesTotal tracks rows whose selected side had bid==ask==mid.
	AlignCollapsedQuotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_align_collapsed_quotes_total",
		Help: "Total number of rows with a collapsed bid/ask quote on the selected side",
	})

	// AlignDivergentSidesTotal tracks rows whose two sides look unconverted.
	AlignDivergentSidesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_align_divergent_sides_total",
		Help: "Total number of rows where home and away mids sum to ~1 while far apart",
	})

	// AlignTimelinePoints tracks surviving points per aligned event.
	AlignTimelinePoints = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probedge_align_timeline_points",
		Help:    "Number of aligned points per event timeline",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1, 2, 4, ..., 2048
	})
)
