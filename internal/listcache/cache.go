// Package listcache caches the document and answer listings in Redis. The
// corpus only grows, so entries are invalidated on every write and expire
// after a short TTL otherwise. A nil *Cache is a pass-through: every lookup
// misses and invalidation is a no-op.
package listcache

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/askcorpus/askcorpus/internal/corpus"
	"github.com/askcorpus/askcorpus/pkg/config"
	"github.com/askcorpus/askcorpus/pkg/metrics"
	pkgredis "github.com/askcorpus/askcorpus/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix    = "listing:"
	documentsKey = keyPrefix + "documents"
	answersKey   = keyPrefix + "answers"
)

type Cache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Cache over the given Redis client. metrics may be nil.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *Cache {
	return &Cache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "listing-cache"),
	}
}

// Documents returns the cached document listing, computing and caching it on
// a miss. Concurrent misses for the same key share one computation.
func (c *Cache) Documents(ctx context.Context, computeFn func() ([]corpus.Document, error)) ([]corpus.Document, error) {
	if c == nil {
		return computeFn()
	}
	return getOrCompute(ctx, c, documentsKey, computeFn)
}

// Answers returns the cached answer listing, computing and caching it on a
// miss.
func (c *Cache) Answers(ctx context.Context, computeFn func() ([]corpus.Answer, error)) ([]corpus.Answer, error) {
	if c == nil {
		return computeFn()
	}
	return getOrCompute(ctx, c, answersKey, computeFn)
}

// Invalidate drops all cached listings. Called after every document
// ingestion and answer recording.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		c.logger.Error("cache invalidation failed", "error", err)
		return
	}
	c.logger.Debug("listing cache invalidated", "keys_deleted", deleted)
}

func getOrCompute[T any](ctx context.Context, c *Cache, key string, computeFn func() ([]T, error)) ([]T, error) {
	if cached, ok := c.get(ctx, key); ok {
		var out []T
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			c.hit()
			return out, nil
		}
		c.logger.Error("cache unmarshal failed", "key", key)
	}
	c.miss()
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		out, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]T), nil
}

func (c *Cache) get(ctx context.Context, key string) (string, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return data, true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) hit() {
	if c.metrics != nil {
		c.metrics.ListingCacheHits.Inc()
	}
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.ListingCacheMisses.Inc()
	}
}
