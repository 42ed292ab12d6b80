package forecast

import (
	"context"

	"github.com/quantfold/probedge/pkg/types"
)

// Provider supplies the forecast probability for one timeline point.
// Implementations may pass the source forecast through unchanged,
// recalibrate it, or substitute an external model's output; the
// simulator only sees a [0,1] probability either way.
type Provider interface {
	Predict(ctx context.Context, eventID string, point types.AlignedPoint) (float64, error)
	Name() string
}

// RawProvider passes the source forecast through unchanged.
type RawProvider struct{}

// NewRawProvider creates the pass-through provider.
func NewRawProvider() *RawProvider {
	return &RawProvider{}
}

// Predict returns the point's own forecast probability.
func (p *RawProvider) Predict(_ context.Context, _ string, point types.AlignedPoint) (float64, error) {
	return point.ForecastProb, nil
}

// Name identifies the provider in run records and logs.
func (p *RawProvider) Name() string {
	return "raw"
}
