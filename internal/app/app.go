package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/report"
	"github.com/quantfold/probedge/internal/search"
	"github.com/quantfold/probedge/internal/source"
	"github.com/quantfold/probedge/internal/timeline"
	"github.com/quantfold/probedge/pkg/config"
	"github.com/quantfold/probedge/pkg/healthprobe"
	"github.com/quantfold/probedge/pkg/httpserver"
	"github.com/quantfold/probedge/pkg/progress"
)

// App owns the whole backtest pipeline: snapshot source, timeline
// provider, grid-search orchestrator, report store, and the optional
// observability surface. One App instance drives one run.
type App struct {
	cfg    *config.Config
	opts   *Options
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	tracker       *progress.Tracker
	hub           *progress.Hub

	source       source.Source
	provider     timeline.Provider
	orchestrator *search.Orchestrator
	store        report.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// SingleEvent restricts the run to one event id and places it in the
	// train split. Meant for debugging a single timeline, not for real
	// parameter selection.
	SingleEvent string
}
