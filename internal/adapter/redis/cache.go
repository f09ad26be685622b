// Package redis caches dashboard snapshot reads so the periodic push and the
// REST dashboard endpoints do not hammer Postgres with the same aggregate
// queries.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/realtime"
)

const (
	statsKey          = "hazard:stats"
	activityKeyPrefix = "hazard:activity:"
)

// CachedStorage wraps a Storage with a short-TTL Redis cache. Every cache
// failure falls through to the inner storage; Redis being down degrades
// latency, never availability.
type CachedStorage struct {
	inner  realtime.Storage
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStorage creates a cache decorator around the given storage.
func NewCachedStorage(inner realtime.Storage, cfg *config.Config, logger *slog.Logger) *CachedStorage {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	return newCachedStorage(inner, client, cfg.StatsCacheTTL, logger)
}

func newCachedStorage(inner realtime.Storage, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStorage {
	return &CachedStorage{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedStorage) Close() error {
	return c.client.Close()
}

// GetSystemStats returns the cached snapshot when fresh, otherwise reads
// through and refills the cache.
func (c *CachedStorage) GetSystemStats(ctx context.Context) (domain.SystemStats, error) {
	var stats domain.SystemStats
	if c.lookup(ctx, statsKey, &stats) {
		return stats, nil
	}

	stats, err := c.inner.GetSystemStats(ctx)
	if err != nil {
		return domain.SystemStats{}, err
	}
	c.store(ctx, statsKey, stats)
	return stats, nil
}

// GetRecentActivity returns the cached feed for this limit when fresh,
// otherwise reads through and refills the cache.
func (c *CachedStorage) GetRecentActivity(ctx context.Context, limit int) ([]domain.Activity, error) {
	key := fmt.Sprintf("%s%d", activityKeyPrefix, limit)

	var feed []domain.Activity
	if c.lookup(ctx, key, &feed) {
		return feed, nil
	}

	feed, err := c.inner.GetRecentActivity(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, feed)
	return feed, nil
}

// lookup reads and decodes a cached value. Any error counts as a miss.
func (c *CachedStorage) lookup(ctx context.Context, key string, out any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed, falling through", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("cache entry corrupt, falling through", "key", key, "error", err)
		return false
	}
	return true
}

// store writes a value best-effort; a failure only costs the next read a trip
// to Postgres.
func (c *CachedStorage) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
