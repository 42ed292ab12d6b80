package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Data-level errors are
// recovered by the orchestrator (the event is skipped and counted);
// source-level errors abort the run.
var (
	// ErrTimelineNotFound means the source has no rows for an event id.
	ErrTimelineNotFound = errors.New("timeline not found")

	// ErrSourceUnavailable means the snapshot source cannot be reached
	// at all. This is fatal and is surfaced to the caller immediately.
	ErrSourceUnavailable = errors.New("snapshot source unavailable")

	// ErrNoValidCombination means no grid combination produced enough
	// train-split trades to be ranked by the selection policy.
	ErrNoValidCombination = errors.New("no combination met the minimum trade count on the train split")
)

// EventError wraps a per-event failure with the event id and the
// pipeline stage that produced it.
type EventError struct {
	EventID string
	Stage   string // "fetch" or "forecast"
	Err     error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event %s: %s: %v", e.EventID, e.Stage, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}
