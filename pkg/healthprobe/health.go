package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker provides liveness and readiness handlers. Liveness is
// unconditional; readiness flips once the run pipeline is wired.
type HealthChecker struct {
	service   string
	startTime time.Time
	ready     atomic.Bool
}

// New creates a HealthChecker reporting under the given service name.
func New(service string) *HealthChecker {
	return &HealthChecker{
		service:   service,
		startTime: time.Now(),
	}
}

// SetReady marks the service as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Message string `json:"message,omitempty"`
}

// Health returns an HTTP handler for liveness checks. Always 200 while
// the process runs.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Service: h.service,
			Status:  "healthy",
			Uptime:  time.Since(h.startTime).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks: 200 when ready,
// 503 while starting up.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			resp := HealthResponse{
				Service: h.service,
				Status:  "not_ready",
				Message: "run pipeline is starting",
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp := HealthResponse{
			Service: h.service,
			Status:  "ready",
			Uptime:  time.Since(h.startTime).String(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
