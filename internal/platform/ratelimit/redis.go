// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/miracleonyenma/keygate/internal/platform/constants"
)

// RedisLimiter is a Redis-backed fixed-window limiter shared across nodes.
//
// # Data Model
//
// Each key maps to a single Redis counter under the auth:ratelimit: prefix.
// INCR opens the window on first use; EXPIRE bounds its lifetime. The
// counter and the window share a TTL, so the reset is atomic from the
// caller's point of view.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter wraps an existing Redis client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow implements [Limiter].
func (limiter *RedisLimiter) Allow(ctx context.Context, key string, limit int, windowSize time.Duration) (Decision, error) {
	redisKey := constants.RedisPrefixRateLimit + key

	count, err := limiter.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr failed: %w", err)
	}

	// First event opens the window; attach the TTL exactly once.
	if count == 1 {
		if err := limiter.client.Expire(ctx, redisKey, windowSize).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: expire failed: %w", err)
		}
	}

	if count > int64(limit) {
		retryAfter, err := limiter.client.TTL(ctx, redisKey).Result()
		if err != nil || retryAfter < 0 {
			retryAfter = windowSize
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true, Remaining: limit - int(count)}, nil
}

// RemainingCooldown implements [Limiter].
func (limiter *RedisLimiter) RemainingCooldown(ctx context.Context, key string, _ time.Duration) (time.Duration, error) {
	remaining, err := limiter.client.TTL(ctx, constants.RedisPrefixRateLimit+key).Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: ttl failed: %w", err)
	}
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Sweep implements [Limiter]. Redis expires counters natively, so there is
// nothing to reclaim.
func (limiter *RedisLimiter) Sweep(context.Context, time.Duration) error {
	return nil
}
