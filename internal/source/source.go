package source

import (
	"context"

	"github.com/quantfold/probedge/pkg/types"
)

// Source delivers raw snapshot rows and event metadata for alignment.
// Implementations must be safe for concurrent reads; the orchestrator
// hands one handle to many workers through the timeline provider.
type Source interface {
	// ListEvents returns all event ids known to the source, sorted.
	ListEvents(ctx context.Context) ([]string, error)

	// Rows returns the raw rows and metadata for one event. Meta is nil
	// when the source has none. An unknown event id yields
	// types.ErrTimelineNotFound.
	Rows(ctx context.Context, eventID string) ([]types.SnapshotRow, *types.EventMeta, error)

	// Close releases the underlying handle.
	Close() error
}
