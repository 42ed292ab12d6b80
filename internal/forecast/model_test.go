package forecast

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/cache"
)

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return path
}

func TestLoadModel(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeModel(t, `{"version":1,"kind":"platt","coef":1.2,"intercept":-0.1}`)

		model, err := LoadModel(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if model.Coef != 1.2 || model.Intercept != -0.1 {
			t.Errorf("unexpected coefficients: %+v", model)
		}
	})

	t.Run("unsupported-version", func(t *testing.T) {
		path := writeModel(t, `{"version":2,"kind":"platt","coef":1,"intercept":0}`)

		if _, err := LoadModel(path); err == nil {
			t.Error("expected error for unknown version")
		}
	})

	t.Run("missing-version", func(t *testing.T) {
		path := writeModel(t, `{"kind":"platt","coef":1,"intercept":0}`)

		if _, err := LoadModel(path); err == nil {
			t.Error("expected error for missing version tag")
		}
	})

	t.Run("unsupported-kind", func(t *testing.T) {
		path := writeModel(t, `{"version":1,"kind":"isotonic","coef":1,"intercept":0}`)

		if _, err := LoadModel(path); err == nil {
			t.Error("expected error for unknown kind")
		}
	})

	t.Run("malformed-json", func(t *testing.T) {
		path := writeModel(t, `{not json`)

		if _, err := LoadModel(path); err == nil {
			t.Error("expected error for malformed file")
		}
	})

	t.Run("missing-file", func(t *testing.T) {
		if _, err := LoadModel("/nonexistent/model.json"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestModelCache_SharesLoadedModels(t *testing.T) {
	logger := zap.NewNop()
	backing, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	defer backing.Close()

	path := writeModel(t, `{"version":1,"kind":"platt","coef":1,"intercept":0}`)

	models := NewModelCache(backing, logger)

	first, err := models.Get(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	backing.(*cache.RistrettoCache).Wait()

	// Remove the file: a second Get must be served from the cache.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove model file: %v", err)
	}

	second, err := models.Get(path)
	if err != nil {
		t.Fatalf("expected cached model after file removal, got %v", err)
	}
	if first != second {
		t.Error("expected the same model instance from the cache")
	}
}

func TestModelCache_NilCacheLoadsFromDisk(t *testing.T) {
	models := NewModelCache(nil, zap.NewNop())

	path := writeModel(t, `{"version":1,"kind":"platt","coef":1,"intercept":0}`)

	if _, err := models.Get(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove model file: %v", err)
	}

	if _, err := models.Get(path); err == nil {
		t.Error("expected disk load failure without a cache")
	}
}
