package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/quantfold/probedge/pkg/types"
)

// logitEpsilon keeps the logit finite at the probability bounds.
const logitEpsilon = 1e-6

// CalibratedProvider applies Platt scaling to the source forecast:
// sigmoid(coef * logit(p) + intercept). The model is resolved at
// construction; Predict never touches the filesystem.
type CalibratedProvider struct {
	model *Model
}

// NewCalibratedProvider loads the model at path through the shared
// cache and binds it for the provider's lifetime.
func NewCalibratedProvider(path string, models *ModelCache) (*CalibratedProvider, error) {
	model, err := models.Get(path)
	if err != nil {
		return nil, fmt.Errorf("calibrated provider: %w", err)
	}
	return &CalibratedProvider{model: model}, nil
}

// Predict recalibrates the point's forecast probability.
func (p *CalibratedProvider) Predict(_ context.Context, _ string, point types.AlignedPoint) (float64, error) {
	return p.calibrate(point.ForecastProb), nil
}

// Name identifies the provider in run records and logs.
func (p *CalibratedProvider) Name() string {
	return fmt.Sprintf("platt-v%d", p.model.Version)
}

func (p *CalibratedProvider) calibrate(prob float64) float64 {
	clamped := math.Min(math.Max(prob, logitEpsilon), 1-logitEpsilon)
	logit := math.Log(clamped / (1 - clamped))
	z := p.model.Coef*logit + p.model.Intercept
	return 1.0 / (1.0 + math.Exp(-z))
}
