package progress

import (
	"sync"
	"testing"
)

func TestTracker_CountsRun(t *testing.T) {
	tracker := NewTracker()
	tracker.Begin(40)
	for i := 0; i < 10; i++ {
		tracker.CombinationDone()
	}
	tracker.EventSkipped()
	tracker.EventSkipped()

	snap := tracker.Snapshot()
	if snap.TotalCombinations != 40 {
		t.Errorf("expected total 40, got %d", snap.TotalCombinations)
	}
	if snap.CompletedCombinations != 10 {
		t.Errorf("expected completed 10, got %d", snap.CompletedCombinations)
	}
	if snap.EventErrors != 2 {
		t.Errorf("expected 2 event errors, got %d", snap.EventErrors)
	}
	if snap.PercentComplete != 25 {
		t.Errorf("expected 25%% complete, got %f", snap.PercentComplete)
	}
	if !snap.Running {
		t.Error("expected the run to be marked running")
	}
	if snap.ElapsedSeconds < 0 {
		t.Errorf("elapsed must not be negative, got %f", snap.ElapsedSeconds)
	}

	tracker.Finish()
	if tracker.Snapshot().Running {
		t.Error("expected the run to be finished")
	}
}

func TestTracker_BeginResetsCounters(t *testing.T) {
	tracker := NewTracker()
	tracker.Begin(5)
	tracker.CombinationDone()
	tracker.EventSkipped()

	tracker.Begin(8)
	snap := tracker.Snapshot()
	if snap.TotalCombinations != 8 || snap.CompletedCombinations != 0 || snap.EventErrors != 0 {
		t.Errorf("Begin must reset counters, got %+v", snap)
	}
}

func TestTracker_ZeroTotalAvoidsDivision(t *testing.T) {
	tracker := NewTracker()
	tracker.Begin(0)
	if pct := tracker.Snapshot().PercentComplete; pct != 0 {
		t.Errorf("expected 0%% with no combinations, got %f", pct)
	}
}

func TestTracker_NilReceiverSafe(t *testing.T) {
	var tracker *Tracker
	tracker.Begin(10)
	tracker.CombinationDone()
	tracker.EventSkipped()
	tracker.Finish()

	if snap := tracker.Snapshot(); snap != (Snapshot{}) {
		t.Errorf("nil tracker must snapshot to zero, got %+v", snap)
	}
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tracker := NewTracker()
	tracker.Begin(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.CombinationDone()
			}
		}()
	}
	wg.Wait()

	if got := tracker.Snapshot().CompletedCombinations; got != 1000 {
		t.Errorf("expected 1000 completions, got %d", got)
	}
}
