package progress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ConnectedClients tracks live WebSocket subscribers.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "probedge_progress_connected_clients",
		Help: "Number of connected progress WebSocket clients",
	})

	// SnapshotsBroadcastTotal counts snapshot fan-outs.
	SnapshotsBroadcastTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_progress_snapshots_broadcast_total",
		Help: "Total number of progress snapshots broadcast to clients",
	})
)
