package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsReadTotal tracks snapshot rows delivered by source kind.
	RowsReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probedge_source_rows_read_total",
			Help: "Total number of snapshot rows read",
		},
		[]string{"source"},
	)

	// MalformedRowsTotal tracks undecodable rows skipped by source kind.
	MalformedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probedge_source_malformed_rows_total",
			Help: "Total number of malformed rows skipped",
		},
		[]string{"source"},
	)
)
