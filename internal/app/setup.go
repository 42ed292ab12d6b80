package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/align"
	"github.com/quantfold/probedge/internal/circuitbreaker"
	"github.com/quantfold/probedge/internal/forecast"
	"github.com/quantfold/probedge/internal/report"
	"github.com/quantfold/probedge/internal/search"
	"github.com/quantfold/probedge/internal/sim"
	"github.com/quantfold/probedge/internal/source"
	"github.com/quantfold/probedge/internal/timeline"
	"github.com/quantfold/probedge/pkg/cache"
	"github.com/quantfold/probedge/pkg/config"
	"github.com/quantfold/probedge/pkg/healthprobe"
	"github.com/quantfold/probedge/pkg/httpserver"
	"github.com/quantfold/probedge/pkg/progress"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := setupHealthChecker()

	// Setup cache for built timelines
	timelineCache, err := setupTimelineCache(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup timeline cache: %w", err)
	}

	// Setup snapshot source
	src, err := setupSource(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup source: %w", err)
	}

	// Setup forecast provider
	forecaster, err := setupForecast(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup forecast provider: %w", err)
	}

	provider := setupTimelineProvider(cfg, logger, src, forecaster, timelineCache)

	tracker := progress.NewTracker()
	hub := progress.NewHub(tracker, time.Second, logger)

	// Setup HTTP server (needs tracker and hub for progress routes)
	var httpServer *httpserver.Server
	if cfg.HTTP.Enabled {
		httpServer = setupHTTPServer(cfg, logger, healthChecker, tracker, hub)
	}

	// Setup report store
	store, err := setupReportStore(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup report store: %w", err)
	}

	orchestrator := setupOrchestrator(cfg, logger, provider, tracker)

	return &App{
		cfg:           cfg,
		opts:          opts,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		tracker:       tracker,
		hub:           hub,
		source:        src,
		provider:      provider,
		orchestrator:  orchestrator,
		store:         store,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New("probedge")
}

func setupTimelineCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: cfg.Cache.TimelineMaxItems * 10, // 10x expected max items
		MaxCost:     cfg.Cache.TimelineMaxItems,
		BufferItems: 64, // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupSource(cfg *config.Config, logger *zap.Logger) (source.Source, error) {
	switch cfg.Source.Kind {
	case "sqlite":
		return source.NewSQLiteSource(cfg.Source.Path, logger)
	case "jsonl":
		return source.NewJSONLSource(cfg.Source.Path, logger)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func setupForecast(cfg *config.Config, logger *zap.Logger) (forecast.Provider, error) {
	switch cfg.Forecast.Mode {
	case "calibrated":
		modelCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
			NumCounters: cfg.Cache.ModelMaxItems * 10,
			MaxCost:     cfg.Cache.ModelMaxItems,
			BufferItems: 64,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create model cache: %w", err)
		}
		models := forecast.NewModelCache(modelCache, logger)
		provider, err := forecast.NewCalibratedProvider(cfg.Forecast.ModelPath, models)
		if err != nil {
			return nil, fmt.Errorf("load calibration model: %w", err)
		}
		return provider, nil
	case "http":
		breaker, err := circuitbreaker.New(&circuitbreaker.Config{
			Name:             "model-server",
			FailureThreshold: circuitbreaker.DefaultFailureThreshold,
			Cooldown:         circuitbreaker.DefaultCooldown,
			Logger:           logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create model-server breaker: %w", err)
		}
		return forecast.NewHTTPProvider(forecast.HTTPProviderConfig{
			URL:           cfg.Forecast.URL,
			RatePerSecond: cfg.Forecast.RatePerSecond,
			Burst:         cfg.Forecast.Burst,
			Breaker:       breaker,
			Logger:        logger,
		}), nil
	case "raw":
		return forecast.NewRawProvider(), nil
	default:
		return nil, fmt.Errorf("unknown forecast mode %q", cfg.Forecast.Mode)
	}
}

func setupTimelineProvider(
	cfg *config.Config,
	logger *zap.Logger,
	src source.Source,
	forecaster forecast.Provider,
	timelineCache cache.Cache,
) timeline.Provider {
	aligner := align.New(align.Config{
		ExcludeFirstSeconds: cfg.Sim.ExcludeFirstSeconds,
		ExcludeLastSeconds:  cfg.Sim.ExcludeLastSeconds,
		Logger:              logger,
	})
	builder := timeline.New(timeline.Config{
		Source:   src,
		Aligner:  aligner,
		Forecast: forecaster,
		Logger:   logger,
	})
	return timeline.NewCachedProvider(builder, timelineCache, logger)
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	tracker *progress.Tracker,
	hub *progress.Hub,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTP.Port,
		Logger:        logger,
		HealthChecker: healthChecker,
		Tracker:       tracker,
		Hub:           hub,
	})
}

func setupReportStore(cfg *config.Config, logger *zap.Logger) (report.Store, error) {
	if cfg.Storage.Mode == "postgres" {
		pgStore, err := report.NewPostgresStore(&report.PostgresConfig{
			Host:     cfg.Storage.PostgresHost,
			Port:     cfg.Storage.PostgresPort,
			User:     cfg.Storage.PostgresUser,
			Password: cfg.Storage.PostgresPass,
			Database: cfg.Storage.PostgresDB,
			SSLMode:  cfg.Storage.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres report store: %w", err)
		}
		return pgStore, nil
	}

	return report.NewConsoleStore(logger), nil
}

func setupOrchestrator(
	cfg *config.Config,
	logger *zap.Logger,
	provider timeline.Provider,
	tracker *progress.Tracker,
) *search.Orchestrator {
	simulator := sim.New(sim.Config{
		MinHoldSeconds:      cfg.Sim.MinHoldSeconds,
		FallbackExitPenalty: cfg.Sim.FallbackExitPenalty,
		ForcedExitPenalty:   cfg.Sim.ForcedExitPenalty,
		Costs: sim.CostConfig{
			BetAmount:    cfg.Costs.BetAmount,
			EnableFees:   cfg.Costs.EnableFees,
			FeeRate:      cfg.Costs.FeeRate,
			SlippageRate: cfg.Costs.SlippageRate,
		},
		Logger: logger,
	})

	return search.New(search.Config{
		WorkerCount:   cfg.Search.WorkerCount,
		TopN:          cfg.Search.TopN,
		MinTradeCount: cfg.Search.MinTradeCount,
		Tracker:       tracker,
		Logger:        logger,
	}, provider, simulator)
}
