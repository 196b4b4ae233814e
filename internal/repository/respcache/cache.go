// Package respcache stores JSON-encoded responses in a key-value store and
// collapses concurrent computations of the same key.
package respcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/modeldex/internal/db"
)

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// cacheable is implemented by values that can be incomplete. Values
// reporting false are returned to callers but never stored.
type cacheable interface {
	Cacheable() bool
}

// Cache is a typed read-through response cache. A nil store disables
// caching but keeps request collapsing.
type Cache[T any] struct {
	store      store
	ttl        time.Duration
	prefix     string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	group      singleflight.Group
}

// New creates a response cache. Keys are stored as prefix+key.
// cacheTotal has a "result" label ("hit"/"miss"/"error") and may be nil.
func New[T any](
	s store, ttl time.Duration, prefix string,
	cacheTotal *prometheus.CounterVec, logger *zap.Logger,
) *Cache[T] {
	return &Cache[T]{store: s, ttl: ttl, prefix: prefix, cacheTotal: cacheTotal, logger: logger}
}

// GetOrCompute returns the cached value for key, or runs compute once for
// all concurrent callers of the same key and stores its result.
// hit reports whether the value came from the store. Compute errors are
// returned as is and never cached.
//
// compute runs detached from the caller's cancellation so that a leader
// abandoning the request does not fail its followers. The caller's
// deadline still applies.
func (c *Cache[T]) GetOrCompute(
	ctx context.Context, key string, compute func(ctx context.Context) (T, error),
) (value T, hit bool, err error) {
	if v, ok := c.lookup(ctx, key); ok {
		return v, true, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		cctx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			cctx, cancel = context.WithDeadline(cctx, deadline)
			defer cancel()
		}
		v, err := compute(cctx)
		if err != nil {
			return v, err
		}
		if cv, ok := any(v).(cacheable); ok && !cv.Cacheable() {
			c.logger.Debug("Skipping cache for incomplete response", zap.String("key", key))
			return v, nil
		}
		c.put(cctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("unexpected cached type %T", res)
	}
	return v, false, nil
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T
	if c.store == nil {
		return zero, false
	}
	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			c.inc("miss")
		} else {
			c.inc("error")
			c.logger.Warn("Response cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.inc("error")
		c.logger.Warn("Corrupt response cache entry", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	c.inc("hit")
	return v, true
}

func (c *Cache[T]) put(ctx context.Context, key string, v T) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Failed to encode response for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, c.prefix+key, data, c.ttl); err != nil {
		c.inc("error")
		c.logger.Warn("Failed to cache response", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache[T]) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
