package cache

import (
	"context"
	"errors"
	"time"

	"teamflow/backend/internal/logging"
)

// MultiLevelCache reads through a process-local L1 to an optional L2.
// L2 calls go through a circuit breaker; while it is open, or on any L2
// error, the cache degrades to L1 only and reports misses.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      Cache
	breaker *CircuitBreaker
	l1TTL   time.Duration
	logger  *logging.Logger
}

type MultiLevelOption func(*MultiLevelCache)

// WithL1TTL caps how long entries live in L1. Other instances may hold a
// stale L1 copy for at most this long after an invalidation.
func WithL1TTL(ttl time.Duration) MultiLevelOption {
	return func(c *MultiLevelCache) { c.l1TTL = ttl }
}

func WithBreaker(cb *CircuitBreaker) MultiLevelOption {
	return func(c *MultiLevelCache) { c.breaker = cb }
}

// NewMultiLevelCache builds the cache; l2 may be nil.
func NewMultiLevelCache(l1 *MemoryCache, l2 Cache, logger *logging.Logger, opts ...MultiLevelOption) *MultiLevelCache {
	c := &MultiLevelCache{
		l1:      l1,
		l2:      l2,
		breaker: NewCircuitBreaker(nil),
		l1TTL:   10 * time.Second,
		logger:  logger.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MultiLevelCache) l1Expiry(ttl time.Duration) time.Duration {
	if c.l2 == nil || ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	if c.l2 == nil {
		return ErrCacheMiss
	}

	hit := false
	err := c.breaker.Execute(func() error {
		err := c.l2.Get(ctx, key, dest)
		switch {
		case err == nil:
			hit = true
			return nil
		case errors.Is(err, ErrCacheMiss):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		if !errors.Is(err, ErrCircuitBreakerOpen) {
			c.logger.Warn("l2 cache get failed", "key", key, "error", err)
		}
		return ErrCacheMiss
	}
	if !hit {
		return ErrCacheMiss
	}

	if err := c.l1.Set(ctx, key, dest, c.l1TTL); err != nil {
		c.logger.Warn("l1 backfill failed", "key", key, "error", err)
	}
	return nil
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1Expiry(ttl)); err != nil {
		return err
	}
	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Execute(func() error {
		return c.l2.Set(ctx, key, value, ttl)
	})
	if err != nil && !errors.Is(err, ErrCircuitBreakerOpen) {
		c.logger.Warn("l2 cache set failed", "key", key, "error", err)
	}
	return nil
}

// Delete always clears L1. An L2 failure is returned so callers can log
// that other instances may serve a stale entry until its TTL.
func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	if err := c.l1.Delete(ctx, keys...); err != nil {
		return err
	}
	if c.l2 == nil {
		return nil
	}
	return c.breaker.Execute(func() error {
		return c.l2.Delete(ctx, keys...)
	})
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	if c.breaker.GetState() == CircuitBreakerOpen {
		return ErrCacheDown
	}
	return c.l2.Health(ctx)
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":      c.l1.Stats(),
		"breaker": c.breaker.GetStats(),
	}
	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}
	return stats
}

func (c *MultiLevelCache) Close() error {
	c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
