package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/internal/sim"
	"github.com/quantfold/probedge/internal/timeline"
	"github.com/quantfold/probedge/pkg/progress"
	"github.com/quantfold/probedge/pkg/types"
)

// Config holds the orchestrator settings.
type Config struct {
	// WorkerCount is the number of goroutines evaluating combinations.
	// Zero or negative means one per CPU.
	WorkerCount int

	// TopN is how many train-ranked finalists the validation stage
	// chooses between.
	TopN int

	// MinTradeCount is the fewest trades a combination needs on a
	// split before its metrics count as valid.
	MinTradeCount int

	Tracker *progress.Tracker
	Logger  *zap.Logger
}

// Orchestrator runs the full grid search: every combination against
// every split, then the two-stage selection.
type Orchestrator struct {
	provider  timeline.Provider
	simulator *sim.Simulator
	config    Config
	logger    *zap.Logger
}

// RunResult is the complete output of one grid search run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Metrics holds one record per (combination, split), ordered by
	// (entry, exit, split) so output is stable across runs.
	Metrics   []CombinationMetrics
	Selection *Selection

	Assignment grid.Assignment

	// Partial is set when cancellation stopped the run before every
	// combination was scheduled.
	Partial     bool
	EventErrors int64
}

func New(cfg Config, provider timeline.Provider, simulator *sim.Simulator) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	return &Orchestrator{
		provider:  provider,
		simulator: simulator,
		config:    cfg,
		logger:    logger,
	}
}

// Run evaluates every combination on every split and picks a winner.
//
// Cancelling ctx stops new combinations from being scheduled; the ones
// already handed to a worker finish, and the result comes back with
// Partial set. A selection failure still returns the collected metrics
// alongside the error so callers can report what was measured.
func (o *Orchestrator) Run(ctx context.Context, combos []grid.Combination, assignment grid.Assignment) (*RunResult, error) {
	started := time.Now()
	runID := uuid.New().String()

	splitEvents := map[grid.Split][]string{
		grid.SplitTrain:      sortedCopy(assignment.Train),
		grid.SplitValidation: sortedCopy(assignment.Validation),
		grid.SplitTest:       sortedCopy(assignment.Test),
	}

	o.logger.Info("grid-search-started",
		zap.String("run-id", runID),
		zap.Int("combinations", len(combos)),
		zap.Int("workers", o.config.WorkerCount),
		zap.Int("train-events", len(splitEvents[grid.SplitTrain])),
		zap.Int("validation-events", len(splitEvents[grid.SplitValidation])),
		zap.Int("test-events", len(splitEvents[grid.SplitTest])))

	o.config.Tracker.Begin(len(combos))
	defer o.config.Tracker.Finish()

	// Scheduling watches feedCtx; combinations already in flight run
	// on workCtx so cancellation never leaves one half-evaluated.
	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()
	workCtx := context.WithoutCancel(ctx)

	var (
		wg          sync.WaitGroup
		eventErrors atomic.Int64
		fatalOnce   sync.Once
		fatalErr    error
	)
	recordFatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancelFeed()
		})
	}

	comboCh := make(chan grid.Combination)
	perWorker := make([][]CombinationMetrics, o.config.WorkerCount)

	ActiveWorkers.Set(float64(o.config.WorkerCount))
	defer ActiveWorkers.Set(0)

	for w := 0; w < o.config.WorkerCount; w++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for combo := range comboCh {
				rows, err := o.evaluate(workCtx, combo, splitEvents, &eventErrors)
				if err != nil {
					recordFatal(err)
					return
				}
				perWorker[idx] = append(perWorker[idx], rows...)
				CombinationsEvaluatedTotal.Inc()
				o.config.Tracker.CombinationDone()
			}
		}(w)
	}

	scheduled := 0
feed:
	for _, combo := range combos {
		select {
		case comboCh <- combo:
			scheduled++
		case <-feedCtx.Done():
			break feed
		}
	}
	close(comboCh)
	wg.Wait()

	if fatalErr != nil {
		return nil, fmt.Errorf("grid search aborted: %w", fatalErr)
	}

	metrics := make([]CombinationMetrics, 0, scheduled*len(grid.AllSplits))
	for _, rows := range perWorker {
		metrics = append(metrics, rows...)
	}
	sortMetrics(metrics)

	result := &RunResult{
		RunID:       runID,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Metrics:     metrics,
		Assignment:  assignment,
		Partial:     scheduled < len(combos) || ctx.Err() != nil,
		EventErrors: eventErrors.Load(),
	}
	RunDurationSeconds.Observe(result.FinishedAt.Sub(started).Seconds())

	selection, err := Select(metrics, o.config.TopN)
	if err != nil {
		o.logger.Warn("grid-search-no-winner",
			zap.String("run-id", runID),
			zap.Int("combinations-evaluated", scheduled),
			zap.Error(err))
		return result, fmt.Errorf("select winning combination: %w", err)
	}
	result.Selection = selection

	o.logger.Info("grid-search-finished",
		zap.String("run-id", runID),
		zap.Duration("elapsed", result.FinishedAt.Sub(started)),
		zap.Bool("partial", result.Partial),
		zap.Int64("event-errors", result.EventErrors),
		zap.Float64("winner-entry", selection.Combination.Entry),
		zap.Float64("winner-exit", selection.Combination.Exit),
		zap.Float64("winner-validation-net", selection.Validation.NetProfit))

	return result, nil
}

// evaluate runs one combination on the three splits concurrently.
func (o *Orchestrator) evaluate(ctx context.Context, combo grid.Combination, splitEvents map[grid.Split][]string, eventErrors *atomic.Int64) ([]CombinationMetrics, error) {
	rows := make([]CombinationMetrics, len(grid.AllSplits))
	errs := make([]error, len(grid.AllSplits))

	var wg sync.WaitGroup
	for i, split := range grid.AllSplits {
		wg.Add(1)
		go func(i int, split grid.Split) {
			defer wg.Done()
			rows[i], errs[i] = o.evaluateSplit(ctx, combo, split, splitEvents[split], eventErrors)
		}(i, split)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// evaluateSplit folds the split's events, in sorted id order, through
// the simulator. Per-event failures skip that event only; a source
// outage aborts the whole run.
func (o *Orchestrator) evaluateSplit(ctx context.Context, combo grid.Combination, split grid.Split, events []string, eventErrors *atomic.Int64) (CombinationMetrics, error) {
	acc := newAccumulator()

	for _, eventID := range events {
		tl, err := o.provider.Timeline(ctx, eventID)
		if err != nil {
			if errors.Is(err, types.ErrSourceUnavailable) {
				return CombinationMetrics{}, fmt.Errorf("fetch timeline for event %s: %w", eventID, err)
			}
			acc.skip()
			eventErrors.Add(1)
			EventSkipsTotal.Inc()
			o.config.Tracker.EventSkipped()
			o.logger.Warn("event-skipped",
				zap.String("event-id", eventID),
				zap.String("split", string(split)),
				zap.Float64("entry", combo.Entry),
				zap.Float64("exit", combo.Exit),
				zap.Error(err))
			continue
		}

		acc.addResult(o.simulator.Run(tl, combo.Entry, combo.Exit))
	}

	return acc.metrics(combo, split, o.config.MinTradeCount), nil
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

// sortMetrics orders records by (entry, exit, split) so merged
// per-worker output is identical run to run.
func sortMetrics(metrics []CombinationMetrics) {
	rank := map[grid.Split]int{
		grid.SplitTrain:      0,
		grid.SplitValidation: 1,
		grid.SplitTest:       2,
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		if metrics[i].Combination.Entry != metrics[j].Combination.Entry {
			return metrics[i].Combination.Entry < metrics[j].Combination.Entry
		}
		if metrics[i].Combination.Exit != metrics[j].Combination.Exit {
			return metrics[i].Combination.Exit < metrics[j].Combination.Exit
		}
		return rank[metrics[i].Split] < rank[metrics[j].Split]
	})
}
