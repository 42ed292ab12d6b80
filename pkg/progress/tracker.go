// Package progress tracks grid search completion and streams it to
// WebSocket subscribers.
package progress

import (
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time picture of a run, shaped for JSON.
type Snapshot struct {
	TotalCombinations     int64   `json:"total_combinations"`
	CompletedCombinations int64   `json:"completed_combinations"`
	EventErrors           int64   `json:"event_errors"`
	PercentComplete       float64 `json:"percent_complete"`
	ElapsedSeconds        float64 `json:"elapsed_seconds"`
	Running               bool    `json:"running"`
}

// Tracker counts run progress with atomics so every worker can report
// without contention. All methods are safe on a nil receiver, which
// lets callers treat progress reporting as optional.
type Tracker struct {
	total     atomic.Int64
	completed atomic.Int64
	eventErrs atomic.Int64
	startedAt atomic.Int64
	running   atomic.Bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin resets the counters for a new run.
func (t *Tracker) Begin(totalCombinations int) {
	if t == nil {
		return
	}
	t.total.Store(int64(totalCombinations))
	t.completed.Store(0)
	t.eventErrs.Store(0)
	t.startedAt.Store(time.Now().UnixNano())
	t.running.Store(true)
}

// CombinationDone records one fully evaluated combination.
func (t *Tracker) CombinationDone() {
	if t == nil {
		return
	}
	t.completed.Add(1)
}

// EventSkipped records one event dropped by a per-event error.
func (t *Tracker) EventSkipped() {
	if t == nil {
		return
	}
	t.eventErrs.Add(1)
}

// Finish marks the run as no longer in progress.
func (t *Tracker) Finish() {
	if t == nil {
		return
	}
	t.running.Store(false)
}

// Snapshot returns the current counters. Field reads are individually
// atomic; a snapshot taken mid-update may be off by one combination,
// which is fine for display.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}

	s := Snapshot{
		TotalCombinations:     t.total.Load(),
		CompletedCombinations: t.completed.Load(),
		EventErrors:           t.eventErrs.Load(),
		Running:               t.running.Load(),
	}
	if s.TotalCombinations > 0 {
		s.PercentComplete = 100 * float64(s.CompletedCombinations) / float64(s.TotalCombinations)
	}
	if started := t.startedAt.Load(); started > 0 {
		s.ElapsedSeconds = time.Since(time.Unix(0, started)).Seconds()
	}
	return s
}
