package embedding

import (
	"context"
	"time"

	"github.com/Try3D/Eunoia/ai/cache"
	"github.com/Try3D/Eunoia/ai/metrics"
)

const cacheType = "embedding"

// CachedEncoder memoizes another Encoder by exact input text.
// Returned slices are shared with the cache and must not be modified.
type CachedEncoder struct {
	next    Encoder
	cache   *cache.VectorCache
	metrics *metrics.PrometheusExporter
}

// NewCachedEncoder wraps next with an LRU cache of the given capacity and TTL.
func NewCachedEncoder(next Encoder, capacity int, ttl time.Duration, m *metrics.PrometheusExporter) *CachedEncoder {
	return &CachedEncoder{
		next:    next,
		cache:   cache.NewVectorCache(capacity, ttl),
		metrics: m,
	}
}

// Embed returns the cached vector for text, calling the wrapped encoder on a miss.
// Failures are not cached.
func (c *CachedEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		c.metrics.RecordCacheHit(cacheType)
		return v, nil
	}
	c.metrics.RecordCacheMiss(cacheType)

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithDefaultTTL(text, v)
	return v, nil
}

// Dimensions returns the wrapped encoder's dimensions.
func (c *CachedEncoder) Dimensions() int {
	return c.next.Dimensions()
}

// Stats returns cache usage counters.
func (c *CachedEncoder) Stats() cache.Stats {
	return c.cache.Stats()
}
