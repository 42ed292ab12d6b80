package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/internal/search"
)

type runOutcome struct {
	result *search.RunResult
	err    error
}

// Run executes one grid-search run and blocks until it finishes or a
// shutdown signal arrives. Whatever was measured is persisted before
// the error, if any, is returned.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("source-kind", a.cfg.Source.Kind),
		zap.String("forecast-mode", a.cfg.Forecast.Mode),
		zap.String("storage-mode", a.cfg.Storage.Mode),
		zap.String("log-level", a.cfg.Log.Level))

	a.startObservability()

	// Mark as ready
	a.healthChecker.SetReady(true)

	resultCh := make(chan runOutcome, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		result, err := a.executeRun(a.ctx)
		resultCh <- runOutcome{result: result, err: err}
	}()

	out := a.waitForOutcome(resultCh)

	if out.result != nil {
		// Persist even when selection failed or the run was cut short.
		if storeErr := a.store.StoreRun(context.Background(), out.result); storeErr != nil {
			a.logger.Error("store-run-failed", zap.Error(storeErr))
			if out.err == nil {
				out.err = storeErr
			}
		}
	}

	if shutdownErr := a.Shutdown(); shutdownErr != nil {
		a.logger.Error("shutdown-error", zap.Error(shutdownErr))
	}

	return out.err
}

func (a *App) startObservability() {
	if a.httpServer != nil {
		a.wg.Add(1)
		go a.runHTTPServer()
	}

	a.wg.Add(1)
	go a.runProgressHub()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runProgressHub() {
	defer a.wg.Done()
	a.hub.Run(a.ctx)
}

func (a *App) waitForOutcome(resultCh <-chan runOutcome) runOutcome {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
		a.cancel()
		// The orchestrator finishes in-flight combinations after cancel.
		return <-resultCh
	case out := <-resultCh:
		return out
	}
}

// executeRun lists the events, builds the grid and split assignment,
// and hands everything to the orchestrator.
func (a *App) executeRun(ctx context.Context) (*search.RunResult, error) {
	ids, err := a.provider.EventIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	combos := grid.Generate(grid.Config{
		EntryMin:  a.cfg.Grid.EntryMin,
		EntryMax:  a.cfg.Grid.EntryMax,
		EntryStep: a.cfg.Grid.EntryStep,
		ExitMin:   a.cfg.Grid.ExitMin,
		ExitMax:   a.cfg.Grid.ExitMax,
		ExitStep:  a.cfg.Grid.ExitStep,
	})
	if len(combos) == 0 {
		return nil, fmt.Errorf("grid produced no combinations; check the threshold ranges")
	}

	assignment, err := a.assignSplits(ids)
	if err != nil {
		return nil, err
	}

	a.logger.Info("run-configured",
		zap.Int("events", assignment.Total()),
		zap.Int("combinations", len(combos)),
		zap.Int("train-events", len(assignment.Train)),
		zap.Int("validation-events", len(assignment.Validation)),
		zap.Int("test-events", len(assignment.Test)))

	return a.orchestrator.Run(ctx, combos, *assignment)
}

func (a *App) assignSplits(ids []string) (*grid.Assignment, error) {
	if a.opts.SingleEvent != "" {
		for _, id := range ids {
			if id == a.opts.SingleEvent {
				a.logger.Info("single-event-mode", zap.String("event-id", id))
				return &grid.Assignment{Train: []string{id}}, nil
			}
		}
		return nil, fmt.Errorf("event %q not present in source", a.opts.SingleEvent)
	}

	assignment, err := grid.Assign(ids, a.cfg.Split.Seed, grid.Ratios{
		Train:      a.cfg.Split.TrainRatio,
		Validation: a.cfg.Split.ValidationRatio,
		Test:       a.cfg.Split.TestRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("assign splits: %w", err)
	}
	return assignment, nil
}
