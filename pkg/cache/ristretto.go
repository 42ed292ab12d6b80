package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a cache implementation using Ristretto.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	NumCounters int64 // Number of keys to track frequency (10x max items)
	MaxCost     int64 // Maximum cost of cache (in items)
	BufferItems int64 // Number of keys per Get buffer
	Logger      *zap.Logger
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  cache,
		logger: cfg.Logger,
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	start := time.Now()
	value, found := r.cache.Get(key)
	CacheOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())

	if found {
		CacheHitsTotal.Inc()
		r.logger.Debug("cache-hit", zap.String("key", key))
	} else {
		CacheMissesTotal.Inc()
		r.logger.Debug("cache-miss", zap.String("key", key))
	}
	CacheHitRate.Set(r.cache.Metrics.Ratio())

	return value, found
}

// Set stores a value in the cache with a TTL.
// Cost is 1 per entry; capacity counts items, not bytes.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	start := time.Now()
	success := r.cache.SetWithTTL(key, value, 1, ttl)
	CacheOperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())

	if success {
		CacheSetsTotal.Inc()
		r.logger.Debug("cache-set",
			zap.String("key", key),
			zap.Duration("ttl", ttl))
	}
	return success
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	start := time.Now()
	r.cache.Del(key)
	CacheOperationDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())

	CacheDeletesTotal.Inc()
	r.logger.Debug("cache-delete", zap.String("key", key))
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
	r.logger.Info("cache-closed")
}

// Metrics returns Ristretto's internal metrics.
func (r *RistrettoCache) Metrics() *ristretto.Metrics {
	return r.cache.Metrics
}

// Wait blocks until all pending writes have been applied.
// Useful in tests that read back a value immediately after Set.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
