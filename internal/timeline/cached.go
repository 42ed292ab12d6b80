package timeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/cache"
	"github.com/quantfold/probedge/pkg/types"
)

// timelineTTL keeps built timelines around for the life of a run. The
// underlying data never changes mid-run, so staleness is not a concern;
// the TTL only bounds memory on very long processes.
const timelineTTL = time.Hour

// CachedProvider wraps a Provider with a timeline cache. Every grid
// combination re-reads the same timelines, so the cache turns an
// O(combinations x events) source load into O(events).
type CachedProvider struct {
	inner  Provider
	cache  cache.Cache
	logger *zap.Logger
}

// NewCachedProvider creates a caching layer over the given provider.
func NewCachedProvider(inner Provider, c cache.Cache, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		cache:  c,
		logger: logger,
	}
}

// EventIDs lists the events available from the wrapped provider.
func (p *CachedProvider) EventIDs(ctx context.Context) ([]string, error) {
	return p.inner.EventIDs(ctx)
}

// Timeline returns the cached timeline for an event, building it on
// first use. Concurrent first reads may build twice; the result is
// identical either way.
func (p *CachedProvider) Timeline(ctx context.Context, eventID string) (*types.EventTimeline, error) {
	cacheKey := fmt.Sprintf("timeline:%s", eventID)

	if p.cache != nil {
		if cached, ok := p.cache.Get(cacheKey); ok {
			if tl, ok := cached.(*types.EventTimeline); ok {
				return tl, nil
			}
		}
	}

	tl, err := p.inner.Timeline(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(cacheKey, tl, timelineTTL)
	}

	return tl, nil
}
