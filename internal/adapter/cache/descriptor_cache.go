// Package cache is the read-through descriptor cache: an in-memory LRU in
// front of a persistent store, with concurrent computations of the same key
// collapsed into one.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"ilfeat/internal/domain"
	"ilfeat/internal/logging"
	"ilfeat/internal/metrics"
	"ilfeat/internal/port"
)

var _ port.DescriptorCache = (*DescriptorCache)(nil)

type DescriptorCache struct {
	l1      *L1
	store   port.DescriptorStore
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  logging.Logger
}

type Option func(*DescriptorCache)

func WithL1(l1 *L1) Option {
	return func(c *DescriptorCache) { c.l1 = l1 }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *DescriptorCache) { c.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(c *DescriptorCache) { c.logger = l }
}

func NewDescriptorCache(store port.DescriptorStore, opts ...Option) *DescriptorCache {
	c := &DescriptorCache{
		store:  store,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.l1 == nil {
		c.l1 = NewL1(0, 0)
	}
	return c
}

// GetOrCompute returns the vector for key, calling compute at most once per
// key across sequential and concurrent callers. Errors from compute are
// returned and never stored.
func (c *DescriptorCache) GetOrCompute(ctx context.Context, key domain.CacheKey, compute func(ctx context.Context) (domain.DescriptorVector, error)) (domain.DescriptorVector, error) {
	if vec, ok := c.l1.Get(key); ok {
		c.metrics.CacheResult(key.Generator, "hit")
		return vec, nil
	}

	vec, found, err := c.lookup(key)
	if err != nil {
		return domain.DescriptorVector{}, err
	}
	if found {
		c.metrics.CacheResult(key.Generator, "hit")
		c.l1.Put(key, vec)
		return vec, nil
	}

	vec, err = c.flight(ctx, key, compute)
	// a shared flight fails with the leader's context error; run our own
	if err != nil && isContextErr(err) && ctx.Err() == nil {
		vec, err = c.flight(ctx, key, compute)
	}
	return vec, err
}

func (c *DescriptorCache) flight(ctx context.Context, key domain.CacheKey, compute func(ctx context.Context) (domain.DescriptorVector, error)) (domain.DescriptorVector, error) {
	v, err, _ := c.group.Do(l1Key(key), func() (interface{}, error) {
		// an earlier flight may have stored the vector since our lookup
		vec, found, err := c.lookup(key)
		if err != nil {
			return nil, err
		}
		if found {
			c.metrics.CacheResult(key.Generator, "hit")
			c.l1.Put(key, vec)
			return vec, nil
		}

		c.metrics.CacheResult(key.Generator, "miss")
		start := time.Now()
		vec, err = compute(ctx)
		if err != nil {
			return nil, err
		}
		c.metrics.ObserveCompute(key.Generator, time.Since(start))

		if err := c.store.Put(key, vec); err != nil {
			c.logger.Warn("failed to persist descriptor vector",
				logging.String("generator", key.Generator),
				logging.String("key", key.Hash),
				logging.Err(err))
		}
		c.l1.Put(key, vec)
		return vec, nil
	})
	if err != nil {
		return domain.DescriptorVector{}, err
	}
	return v.(domain.DescriptorVector), nil
}

// lookup reads key from the store. Corrupt entries are logged, counted,
// deleted from both tiers and reported as misses.
func (c *DescriptorCache) lookup(key domain.CacheKey) (domain.DescriptorVector, bool, error) {
	vec, found, err := c.store.Get(key)
	if err == nil {
		return vec, found, nil
	}
	if !errors.Is(err, domain.ErrCacheCorruption) {
		return domain.DescriptorVector{}, false, fmt.Errorf("failed to read descriptor cache: %w", err)
	}

	c.metrics.CacheResult(key.Generator, "corrupt")
	c.logger.Warn("discarding corrupt cache entry",
		logging.String("generator", key.Generator),
		logging.String("version", key.Version),
		logging.String("key", key.Hash),
		logging.Err(err))
	c.l1.Delete(key)
	if derr := c.store.Delete(key); derr != nil {
		c.logger.Warn("failed to delete corrupt cache entry", logging.String("key", key.Hash), logging.Err(derr))
	}
	return domain.DescriptorVector{}, false, nil
}

// Purge removes generator entries from the store and drops the in-memory copies.
func (c *DescriptorCache) Purge(generator, version string) (int, error) {
	n, err := c.store.Purge(generator, version)
	c.l1.Invalidate()
	if err != nil {
		return n, fmt.Errorf("failed to purge %s: %w", generator, err)
	}
	return n, nil
}

func (c *DescriptorCache) Stats() (map[string]int, error) {
	return c.store.Stats()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
