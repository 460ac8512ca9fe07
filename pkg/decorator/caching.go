package decorator

import (
	"context"
	"sync/atomic"
	"time"
)

type (
	// CacheStatus reports how a cached query was served.
	CacheStatus string

	cacheStatusKey struct{}

	CacheConfig struct {
		Enabled bool
		TTL     time.Duration
		// WriteTimeout bounds the background write after a miss.
		WriteTimeout time.Duration
		// OnError receives lookup and write failures. Both are otherwise
		// ignored and the query is served from the base handler.
		OnError func(err error)
	}

	CacheGetter[Q Query, R Result] interface {
		Get(ctx context.Context, query Q) (R, bool, error)
	}

	CacheSetter[Q Query, R Result] interface {
		Set(ctx context.Context, query Q, result R, ttl time.Duration) error
	}

	Cache[Q Query, R Result] interface {
		CacheGetter[Q, R]
		CacheSetter[Q, R]
	}

	queryCachingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		cache  Cache[Q, R]
		config CacheConfig
	}
)

const (
	CacheStatusHit    CacheStatus = "HIT"
	CacheStatusMiss   CacheStatus = "MISS"
	CacheStatusBypass CacheStatus = "BYPASS"
	CacheStatusError  CacheStatus = "ERROR"

	defaultCacheWriteTimeout = 2 * time.Second
)

// TrackCacheStatus returns a context in which caching decorators record how
// the query was served. Read the outcome with GetCacheStatus.
func TrackCacheStatus(ctx context.Context) context.Context {
	holder := &atomic.Value{}
	holder.Store(CacheStatusBypass)

	return context.WithValue(ctx, cacheStatusKey{}, holder)
}

// WithCacheStatus returns a tracking context preset to status.
func WithCacheStatus(ctx context.Context, status CacheStatus) context.Context {
	ctx = TrackCacheStatus(ctx)
	setCacheStatus(ctx, status)

	return ctx
}

// GetCacheStatus returns the recorded status, or BYPASS when the context
// does not track one.
func GetCacheStatus(ctx context.Context) CacheStatus {
	if holder, ok := ctx.Value(cacheStatusKey{}).(*atomic.Value); ok {
		if status, ok := holder.Load().(CacheStatus); ok {
			return status
		}
	}

	return CacheStatusBypass
}

func setCacheStatus(ctx context.Context, status CacheStatus) {
	if holder, ok := ctx.Value(cacheStatusKey{}).(*atomic.Value); ok {
		holder.Store(status)
	}
}

// NewQueryCachingDecorator serves queries from cache when possible. Misses
// are written back in the background, so a concurrent invalidation may be
// overwritten by an older result until TTL expires.
func NewQueryCachingDecorator[Q Query, R Result](
	base QueryHandler[Q, R],
	cache Cache[Q, R],
	config CacheConfig,
) QueryHandler[Q, R] {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultCacheWriteTimeout
	}

	if config.OnError == nil {
		config.OnError = func(error) {}
	}

	return queryCachingDecorator[Q, R]{
		base:   base,
		cache:  cache,
		config: config,
	}
}

func (d queryCachingDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	var zero R

	if !d.config.Enabled || d.cache == nil {
		setCacheStatus(ctx, CacheStatusBypass)

		return d.base.Execute(ctx, query)
	}

	cached, hit, err := d.cache.Get(ctx, query)
	if err != nil {
		d.config.OnError(err)
	}

	if err == nil && hit {
		setCacheStatus(ctx, CacheStatusHit)

		return cached, nil
	}

	status := CacheStatusMiss
	if err != nil {
		status = CacheStatusError
	}

	result, err := d.base.Execute(ctx, query)
	if err != nil {
		setCacheStatus(ctx, status)

		return zero, err
	}

	go func(parent context.Context) {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.config.WriteTimeout)
		defer cancel()

		if err := d.cache.Set(writeCtx, query, result, d.config.TTL); err != nil {
			d.config.OnError(err)
		}
	}(ctx)

	setCacheStatus(ctx, status)

	return result, nil
}
