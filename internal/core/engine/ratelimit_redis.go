package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/apony/quoteintake/internal/core"
)

// RedisRateStore keeps counters in Redis so several instances share a window.
type RedisRateStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisRateStore connects to the Redis instance at url.
func NewRedisRateStore(ctx context.Context, url string) (*RedisRateStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRateStore{client: client, prefix: "ratelimit:"}, nil
}

// NewRedisRateStoreWithClient wraps an existing client.
func NewRedisRateStoreWithClient(client redis.Cmdable) *RedisRateStore {
	return &RedisRateStore{client: client, prefix: "ratelimit:"}
}

// Close releases the underlying connection pool when the store owns one.
func (s *RedisRateStore) Close() error {
	if client, ok := s.client.(*redis.Client); ok {
		return client.Close()
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisRateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Hit implements RateLimitStore.
//
// The first hit of a window sets the expiry; later hits only increment, so the
// window stays fixed. Redis expiry removes closed windows.
func (s *RedisRateStore) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (core.RateLimitRecord, error) {
	fullKey := s.prefix + key

	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return core.RateLimitRecord{}, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return core.RateLimitRecord{}, err
		}
		return core.RateLimitRecord{Count: 1, ResetAt: now.Add(window)}, nil
	}

	ttl, err := s.client.PTTL(ctx, fullKey).Result()
	if err != nil {
		return core.RateLimitRecord{}, err
	}
	if ttl < 0 {
		// Key lost its expiry; close the window from now.
		if err := s.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return core.RateLimitRecord{}, err
		}
		ttl = window
	}

	return core.RateLimitRecord{Count: int(count), ResetAt: now.Add(ttl)}, nil
}
