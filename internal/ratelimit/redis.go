package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps one counter per key under KeyPrefix, expiring with its window.
type Redis struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) key(k string) string {
	if r.keyPrefix == "" {
		return k
	}
	return r.keyPrefix + ":" + k
}

func (r *Redis) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := r.key(key)

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", k, err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("expire %s: %w", k, err)
		}
		return count, window, nil
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ttl %s: %w", k, err)
	}
	if ttl < 0 {
		// a key left without expiry would never reset
		if err := r.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("expire %s: %w", k, err)
		}
		ttl = window
	}
	return count, ttl, nil
}
