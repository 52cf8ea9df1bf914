// Package cache memoizes AND-query results in Redis. Keys are scoped to an
// index fingerprint, so results from a rebuilt index never leak into queries
// against a different one.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/invindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/resilience"
)

const keyPrefix = "invindex:q:"

// Store is the key-value backend. *pkgredis.Client satisfies it; a miss is
// reported as a Redis nil error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over store. m may be nil.
func New(store Store, cfg config.RedisConfig, l *slog.Logger, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store: store,
		ttl:   cfg.CacheTTL,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			ResetTimeout:     cfg.BreakerReset,
			Ignore:           pkgredis.IsNilError,
		}, l),
		logger:  logger.WithComponent(l, "query-cache"),
		metrics: m,
	}
}

func (c *QueryCache) get(ctx context.Context, key string) ([]string, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true
}

func (c *QueryCache) set(ctx context.Context, key string, ids []string) {
	// JSON would rewrite invalid UTF-8, so such results are not cached.
	for _, id := range ids {
		if !utf8.ValidString(id) {
			return
		}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for terms against the index with
// the given fingerprint, or runs compute and stores its result. Concurrent
// misses for the same key share one compute call. Store failures degrade to
// a miss.
func (c *QueryCache) GetOrCompute(ctx context.Context, fingerprint uint64, terms []string, compute func() []string) ([]string, bool) {
	key := BuildKey(fingerprint, terms)
	if ids, ok := c.get(ctx, key); ok {
		c.recordHit()
		c.logger.Debug("cache hit", "key", key)
		return ids, true
	}
	c.recordMiss()
	val, _, _ := c.group.Do(key, func() (any, error) {
		if ids, ok := c.get(ctx, key); ok {
			return ids, nil
		}
		ids := compute()
		c.set(ctx, key, ids)
		return ids, nil
	})
	return val.([]string), false
}

// Invalidate drops every cached result, for every index, and returns the
// number of entries removed. It bypasses the breaker: a failure is reported.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeleteByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats summarises cache use since New.
type Stats struct {
	Hits    int64
	Misses  int64
	Breaker string
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.State().String(),
	}
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key. AND is independent of term order and
// repetition, so the terms are deduplicated and sorted first.
func BuildKey(fingerprint uint64, terms []string) string {
	return keyPrefix + strconv.FormatUint(fingerprint, 16) + ":" + normalizeTerms(terms)
}

func normalizeTerms(terms []string) string {
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	sort.Strings(sorted)
	uniq := sorted[:0]
	for i, t := range sorted {
		if i > 0 && t == sorted[i-1] {
			continue
		}
		uniq = append(uniq, t)
	}
	var b strings.Builder
	for i, t := range uniq {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(t))
	}
	return b.String()
}
