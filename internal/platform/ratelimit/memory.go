// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window tracks the event count for one key.
type window struct {
	count    int
	openedAt time.Time
}

// MemoryLimiter is an in-process fixed-window limiter.
//
// # Concurrency
//
// All methods are safe for concurrent use. State is a plain map guarded by
// a mutex; expired windows are swept opportunistically on each Allow call
// once the map grows past sweepThreshold.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// sweepThreshold is the map size above which Allow triggers a sweep of
// expired windows.
const sweepThreshold = 1024

// NewMemoryLimiter creates an empty in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow implements [Limiter].
func (limiter *MemoryLimiter) Allow(_ context.Context, key string, limit int, windowSize time.Duration) (Decision, error) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()

	if len(limiter.windows) > sweepThreshold {
		limiter.sweepLocked(now, windowSize)
	}

	current, exists := limiter.windows[key]
	if !exists || now.Sub(current.openedAt) >= windowSize {
		// First event opens a fresh window.
		limiter.windows[key] = &window{count: 1, openedAt: now}
		return Decision{Allowed: true, Remaining: limit - 1}, nil
	}

	current.count++
	if current.count > limit {
		retryAfter := windowSize - now.Sub(current.openedAt)
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true, Remaining: limit - current.count}, nil
}

// RemainingCooldown implements [Limiter].
func (limiter *MemoryLimiter) RemainingCooldown(_ context.Context, key string, windowSize time.Duration) (time.Duration, error) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	current, exists := limiter.windows[key]
	if !exists {
		return 0, nil
	}

	remaining := windowSize - limiter.now().Sub(current.openedAt)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Sweep implements [Limiter].
func (limiter *MemoryLimiter) Sweep(_ context.Context, windowSize time.Duration) error {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	limiter.sweepLocked(limiter.now(), windowSize)
	return nil
}

// sweepLocked drops windows older than windowSize. Caller must hold mu.
func (limiter *MemoryLimiter) sweepLocked(now time.Time, windowSize time.Duration) {
	for key, current := range limiter.windows {
		if now.Sub(current.openedAt) >= windowSize {
			delete(limiter.windows, key)
		}
	}
}
