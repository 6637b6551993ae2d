// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

/*
Package ratelimit provides fixed-window request counting keyed by an
arbitrary string (email address, client IP, token id).

Core Responsibilities:

  - Counting: Tracks how many events occurred for a key within the current window.
  - Decisions: Reports whether the next event is allowed and when to retry.
  - Backends: An in-memory counter for single-node deployments and tests,
    and a Redis-backed counter for multi-node deployments.

The window is fixed, not sliding: the first event for a key opens a window
and every event inside it counts against the same budget. The counter
resets when the window elapses.
*/
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	// Allowed reports whether the event fits within the window budget.
	Allowed bool

	// Remaining is the number of events left in the current window.
	// Zero when the decision is a denial.
	Remaining int

	// RetryAfter is how long the caller should wait before the window
	// resets. Zero when the event was allowed.
	RetryAfter time.Duration
}

// Limiter counts events per key within a fixed window.
type Limiter interface {
	// Allow records one event for key and reports whether it fits within
	// limit events per window. The event is counted even when denied, so
	// repeated attempts keep the window occupied.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)

	// RemainingCooldown reports how long until the key's current window
	// resets. Zero when the key has no open window.
	RemainingCooldown(ctx context.Context, key string, window time.Duration) (time.Duration, error)

	// Sweep removes state for windows that have fully elapsed. Backends
	// with native expiry may implement this as a no-op.
	Sweep(ctx context.Context, window time.Duration) error
}
