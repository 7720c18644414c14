package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/metrics"
	"github.com/eventflow/backend/internal/models"
)

const (
	listCacheKey = "events:list"
	cachePattern = "events:*"
	cacheName    = "events"
	defaultTTL   = 60 * time.Second
)

// ErrCacheMiss is returned when the key is absent or the cache is disabled.
var ErrCacheMiss = errors.New("cache miss")

// Cache keeps the public event list in Redis. A nil client disables it.
type Cache struct {
	client  redis.Cmdable
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCache creates the event list cache.
func NewCache(client redis.Cmdable, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, ttl: ttl, metrics: m, logger: logger}
}

// GetList returns the cached list or ErrCacheMiss.
func (c *Cache) GetList(ctx context.Context) ([]models.Event, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheMiss
	}
	raw, err := c.client.Get(ctx, listCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.CacheLookup(cacheName, false)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", listCacheKey, err)
	}
	var list []models.Event
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("unmarshal cache value for %s: %w", listCacheKey, err)
	}
	c.metrics.CacheLookup(cacheName, true)
	return list, nil
}

// SetList stores the list with the configured TTL.
func (c *Cache) SetList(ctx context.Context, list []models.Event) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", listCacheKey, err)
	}
	if err := c.client.Set(ctx, listCacheKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", listCacheKey, err)
	}
	return nil
}

// Invalidate drops every cached event entry. Failures are logged, not returned.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, cachePattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("event cache delete", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("event cache scan", zap.Error(err))
	}
}
