package imageprovider

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/tphakala/imagefinder/internal/observability/metrics"
)

// CachingResolver memoizes outcomes by target URL for the length of a run.
// Records sharing a genus and species produce the same search URL, so the
// page is fetched once. Concurrent lookups of the same URL share one call.
// Error outcomes are not stored.
type CachingResolver struct {
	next    Resolver
	cache   *gocache.Cache
	group   singleflight.Group
	metrics metrics.Recorder
}

// NewCachingResolver wraps next. A ttl <= 0 keeps entries until Flush.
func NewCachingResolver(next Resolver, ttl time.Duration, recorder metrics.Recorder) *CachingResolver {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &CachingResolver{
		next: next,
		// No janitor goroutine; expired entries are dropped on lookup
		cache:   gocache.New(ttl, 0),
		metrics: recorder,
	}
}

// Resolve returns the cached outcome for target.URL or resolves it.
func (c *CachingResolver) Resolve(ctx context.Context, target ProbeTarget) ProbeOutcome {
	if v, ok := c.cache.Get(target.URL); ok {
		c.metrics.RecordCacheLookup(metrics.CacheHit)
		return rebind(v.(ProbeOutcome), target)
	}

	v, _, shared := c.group.Do(target.URL, func() (any, error) {
		// A call that finished between the lookup above and Do stored its outcome
		if v, ok := c.cache.Get(target.URL); ok {
			return lookup{outcome: v.(ProbeOutcome), hit: true}, nil
		}
		outcome := c.next.Resolve(ctx, target)
		if outcome.Result != ResultError {
			c.cache.SetDefault(target.URL, outcome)
		}
		return lookup{outcome: outcome}, nil
	})
	l := v.(lookup)

	switch {
	case l.hit:
		c.metrics.RecordCacheLookup(metrics.CacheHit)
	case shared:
		c.metrics.RecordCacheLookup(metrics.CacheShared)
	default:
		c.metrics.RecordCacheLookup(metrics.CacheMiss)
	}
	return rebind(l.outcome, target)
}

// lookup is the value shared by concurrent callers
type lookup struct {
	outcome ProbeOutcome
	hit     bool
}

// Len returns the number of stored outcomes
func (c *CachingResolver) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every stored outcome.
func (c *CachingResolver) Flush() {
	c.cache.Flush()
}

// rebind attributes a stored outcome to the identifier that asked for it
func rebind(o ProbeOutcome, target ProbeTarget) ProbeOutcome {
	o.Identifier = target.Identifier
	o.Kind = target.Kind
	return o
}
