package forecast

import (
	"fmt"
	"math"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/cache"
)

// modelCacheTTL is effectively forever: model files are immutable and
// versioned, so a loaded model never goes stale.
const modelCacheTTL = 24 * time.Hour

// supportedModelVersion is the only file format this build reads. The
// version tag is resolved once at load; nothing downstream re-probes it.
const supportedModelVersion = 1

// Model is a versioned calibration model file, resolved and validated
// once at load time.
type Model struct {
	Version   int     `json:"version"`
	Kind      string  `json:"kind"`
	Coef      float64 `json:"coef"`
	Intercept float64 `json:"intercept"`
}

// LoadModel reads and validates a model file. Unknown versions and
// kinds are rejected here, never worked around downstream.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file %s: %w", path, err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("parse model file %s: %w", path, err)
	}

	if model.Version != supportedModelVersion {
		return nil, fmt.Errorf("model file %s: unsupported version %d (want %d)",
			path, model.Version, supportedModelVersion)
	}
	if model.Kind != "platt" {
		return nil, fmt.Errorf("model file %s: unsupported kind %q", path, model.Kind)
	}
	if math.IsNaN(model.Coef) || math.IsInf(model.Coef, 0) ||
		math.IsNaN(model.Intercept) || math.IsInf(model.Intercept, 0) {
		return nil, fmt.Errorf("model file %s: non-finite coefficients", path)
	}

	return &model, nil
}

// ModelCache shares loaded models across providers. It is an explicit
// object handed in by the caller; there is no process-wide registry.
type ModelCache struct {
	cache  cache.Cache
	logger *zap.Logger
}

// NewModelCache creates a model cache on top of the given cache. A nil
// cache disables sharing and every Get loads from disk.
func NewModelCache(c cache.Cache, logger *zap.Logger) *ModelCache {
	return &ModelCache{cache: c, logger: logger}
}

// Get returns the model at path, loading it on first use.
func (mc *ModelCache) Get(path string) (*Model, error) {
	cacheKey := fmt.Sprintf("model:%s", path)

	if mc.cache != nil {
		if cached, ok := mc.cache.Get(cacheKey); ok {
			if model, ok := cached.(*Model); ok {
				return model, nil
			}
		}
	}

	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}

	if mc.cache != nil {
		mc.cache.Set(cacheKey, model, modelCacheTTL)
	}

	mc.logger.Info("model-loaded",
		zap.String("path", path),
		zap.String("kind", model.Kind),
		zap.Int("version", model.Version))

	return model, nil
}
