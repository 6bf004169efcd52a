package template

import (
	"context"
	"errors"
	"time"

	"github.com/Yiling-J/theine-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/researchportal/resultpipe/internal/build"
)

var templateCacheCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: build.ProjectName,
	Name:      "template_cache_total_count",
	Help:      "The total number of template schema lookups by cache outcome.",
}, []string{"outcome"})

const (
	defaultCacheSize = 1000
	defaultCacheTTL  = time.Hour
)

type CachedRegistryOpt func(*CachedRegistry)

func WithCacheSize(size int64) CachedRegistryOpt {
	return func(c *CachedRegistry) {
		c.size = size
	}
}

func WithCacheTTL(ttl time.Duration) CachedRegistryOpt {
	return func(c *CachedRegistry) {
		c.ttl = ttl
	}
}

// CachedRegistry caches the schemas resolved by another registry. Concurrent misses for the
// same template id share one upstream lookup. Lookup failures are never cached.
type CachedRegistry struct {
	Registry

	size  int64
	ttl   time.Duration
	cache *theine.Cache[string, *Schema]
	group singleflight.Group
}

var _ Registry = (*CachedRegistry)(nil)

func NewCachedRegistry(inner Registry, opts ...CachedRegistryOpt) (*CachedRegistry, error) {
	c := &CachedRegistry{
		Registry: inner,
		size:     defaultCacheSize,
		ttl:      defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	cache, err := theine.NewBuilder[string, *Schema](c.size).Build()
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

func (c *CachedRegistry) Resolve(ctx context.Context, templateID string) (*Schema, error) {
	if s, ok := c.cache.Get(templateID); ok {
		templateCacheCounter.WithLabelValues("hit").Inc()
		return s, nil
	}
	templateCacheCounter.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(templateID, func() (interface{}, error) {
		s, err := c.Registry.Resolve(ctx, templateID)
		if err != nil {
			return nil, err
		}
		c.cache.SetWithTTL(templateID, s, 1, c.ttl)
		return s, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if err := res.Err; err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// a cancelled leader must not fail the callers that shared its lookup
		if ctx.Err() == nil && errors.Is(err, context.Canceled) {
			return c.Registry.Resolve(ctx, templateID)
		}
		return nil, err
	}
	return res.Val.(*Schema), nil
}

// Close releases the cache resources.
func (c *CachedRegistry) Close() {
	c.cache.Close()
}
