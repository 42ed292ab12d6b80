package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerClosed indicates whether requests are being admitted.
	BreakerClosed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "probedge_circuitbreaker_closed",
		Help: "Whether the breaker admits upstream requests (1=closed, 0=open or probing)",
	})

	// BreakerConsecutiveFailures tracks the current failure run length.
	BreakerConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "probedge_circuitbreaker_consecutive_failures",
		Help: "Length of the current run of consecutive upstream failures",
	})

	// FailuresTotal counts upstream failures observed by the breaker.
	FailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_circuitbreaker_failures_total",
		Help: "Total upstream failures recorded by the breaker",
	})

	// RejectedTotal counts requests refused while the breaker was open.
	RejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_circuitbreaker_rejected_total",
		Help: "Total requests rejected without reaching the upstream",
	})

	// TripsTotal counts transitions into the open state.
	TripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_circuitbreaker_trips_total",
		Help: "Total times the breaker tripped open",
	})

	// StateChangesTotal counts every state transition.
	StateChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_circuitbreaker_state_changes_total",
		Help: "Total circuit breaker state transitions",
	})
)
