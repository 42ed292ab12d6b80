package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/progress"
)

// ProgressHandler serves point-in-time run progress as JSON. Clients
// that want a stream use the WebSocket route instead.
type ProgressHandler struct {
	tracker *progress.Tracker
	logger  *zap.Logger
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(tracker *progress.Tracker, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleProgress handles GET /api/progress requests.
func (h *ProgressHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.tracker.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("failed-to-encode-progress-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *ProgressHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
