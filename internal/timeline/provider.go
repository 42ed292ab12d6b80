package timeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/align"
	"github.com/quantfold/probedge/internal/forecast"
	"github.com/quantfold/probedge/internal/source"
	"github.com/quantfold/probedge/pkg/types"
)

// Provider hands out aligned event timelines. Timelines are read-only
// once returned and may be shared across workers without locking.
type Provider interface {
	EventIDs(ctx context.Context) ([]string, error)
	Timeline(ctx context.Context, eventID string) (*types.EventTimeline, error)
}

// Config holds builder configuration.
type Config struct {
	Source   source.Source
	Aligner  *align.Aligner
	Forecast forecast.Provider // nil keeps the source forecast
	Logger   *zap.Logger
}

// Builder composes the snapshot source, the aligner, and an optional
// forecast provider into one timeline pipeline.
type Builder struct {
	source   source.Source
	aligner  *align.Aligner
	forecast forecast.Provider
	logger   *zap.Logger
}

// New creates a timeline builder.
func New(cfg Config) *Builder {
	return &Builder{
		source:   cfg.Source,
		aligner:  cfg.Aligner,
		forecast: cfg.Forecast,
		logger:   cfg.Logger,
	}
}

// EventIDs lists the events available from the underlying source.
func (b *Builder) EventIDs(ctx context.Context) ([]string, error) {
	return b.source.ListEvents(ctx)
}

// Timeline fetches, aligns, and (optionally) recalibrates one event's
// timeline.
func (b *Builder) Timeline(ctx context.Context, eventID string) (*types.EventTimeline, error) {
	start := time.Now()

	rows, meta, err := b.source.Rows(ctx, eventID)
	if err != nil {
		return nil, &types.EventError{EventID: eventID, Stage: "fetch", Err: err}
	}

	tl, stats := b.aligner.Build(eventID, rows, meta)

	if b.forecast != nil {
		for i := range tl.Points {
			prob, err := b.forecast.Predict(ctx, eventID, tl.Points[i])
			if err != nil {
				return nil, &types.EventError{EventID: eventID, Stage: "forecast", Err: err}
			}
			tl.Points[i].ForecastProb = prob
		}
	}

	TimelinesBuiltTotal.Inc()
	TimelineBuildSeconds.Observe(time.Since(start).Seconds())

	b.logger.Debug("timeline-built",
		zap.String("event-id", eventID),
		zap.Int("rows", stats.TotalRows),
		zap.Int("points", stats.AlignedPoints))

	return tl, nil
}
