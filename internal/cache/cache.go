// Package cache is a redis read-through cache for jobs and payments,
// keyed by entity id. The store stays the source of truth: every
// mutating call invalidates, and any redis hiccup falls back to a
// plain load. Cached reads are eventual; read-after-write holds for
// the session that performed the write because it invalidates first.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/domain"
)

type Cache struct {
	rdb *r.Client
	log *zap.Logger
	ttl time.Duration
}

func New(rdb *r.Client, log *zap.Logger, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, log: log, ttl: ttl}
}

func jobKey(id uuid.UUID) string     { return "job:" + id.String() }
func paymentKey(id uuid.UUID) string { return "payment:" + id.String() }

// GetJob returns the cached job or loads and caches it.
func (c *Cache) GetJob(ctx context.Context, id uuid.UUID, load func(context.Context, uuid.UUID) (*domain.Job, error)) (*domain.Job, error) {
	var job domain.Job
	if c.lookup(ctx, jobKey(id), &job) {
		return &job, nil
	}
	fresh, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, jobKey(id), fresh)
	return fresh, nil
}

// GetPayment returns the cached payment or loads and caches it.
func (c *Cache) GetPayment(ctx context.Context, id uuid.UUID, load func(context.Context, uuid.UUID) (*domain.Payment, error)) (*domain.Payment, error) {
	var p domain.Payment
	if c.lookup(ctx, paymentKey(id), &p) {
		return &p, nil
	}
	fresh, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, paymentKey(id), fresh)
	return fresh, nil
}

// InvalidateJob drops the cached copy after a job mutation.
func (c *Cache) InvalidateJob(ctx context.Context, id uuid.UUID) {
	c.drop(ctx, jobKey(id))
}

// InvalidatePayment drops the cached copy after a payment mutation.
func (c *Cache) InvalidatePayment(ctx context.Context, id uuid.UUID) {
	c.drop(ctx, paymentKey(id))
}

func (c *Cache) lookup(ctx context.Context, key string, dst any) bool {
	if c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != r.Nil {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		c.drop(ctx, key)
		return false
	}
	return true
}

func (c *Cache) fill(ctx context.Context, key string, v any) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) drop(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.Warn("cache del failed", zap.String("key", key), zap.Error(err))
	}
}
