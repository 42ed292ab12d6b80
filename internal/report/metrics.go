package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsStoredTotal counts persisted runs per store backend.
	RunsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probedge_report_runs_stored_total",
		Help: "Total number of grid search runs written to a report store",
	}, []string{"store"})

	// StoreErrorsTotal counts failed writes per store backend.
	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probedge_report_store_errors_total",
		Help: "Total number of report store write failures",
	}, []string{"store"})
)
