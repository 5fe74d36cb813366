package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const shortsCacheKey = "shorts:all"

// RedisShortsCache keeps the last unfiltered listing in Redis for a short TTL.
// Every failure is logged and treated as a miss.
type RedisShortsCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ShortsCache = (*RedisShortsCache)(nil)

func NewRedisShortsCache(ctx context.Context, addr, password string, ttl time.Duration) (*RedisShortsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisShortsCache{client: client, ttl: ttl}, nil
}

func (c *RedisShortsCache) Get(ctx context.Context) (*Result, bool) {
	data, err := c.client.Get(ctx, shortsCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("shorts cache read failed", "error", err)
		return nil, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		slog.Warn("shorts cache entry unreadable", "error", err)
		return nil, false
	}
	return &res, true
}

func (c *RedisShortsCache) Set(ctx context.Context, res Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, shortsCacheKey, data, c.ttl).Err(); err != nil {
		slog.Warn("shorts cache write failed", "error", err)
	}
}

func (c *RedisShortsCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, shortsCacheKey).Err(); err != nil {
		slog.Warn("shorts cache invalidate failed", "error", err)
	}
}

func (c *RedisShortsCache) Close() error {
	return c.client.Close()
}
