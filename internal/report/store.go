package report

import (
	"context"

	"github.com/quantfold/probedge/internal/search"
)

// Store is the interface for persisting grid search runs.
type Store interface {
	// StoreRun persists the run summary, its per-combination metrics,
	// and the split assignment.
	StoreRun(ctx context.Context, result *search.RunResult) error

	// Close closes the store connection.
	Close() error
}
