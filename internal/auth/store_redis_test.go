// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
)

func newRedisOTPHarness(t *testing.T) (*RedisOTPRepository, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewOTPRepository(client), server
}

func TestRedisOTPRepository_SaveFindRoundTrip(t *testing.T) {
	repository, _ := newRedisOTPHarness(t)
	ctx := context.Background()

	now := time.Now()
	record := &OTPRecord{
		Email:      "dev@example.com",
		CodeHash:   "a-sha256-digest",
		ExpiresAt:  now.Add(10 * time.Minute),
		LastSentAt: now,
	}
	require.NoError(t, repository.Save(ctx, record, 10*time.Minute))

	found, err := repository.Find(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, record.CodeHash, found.CodeHash)
	assert.Equal(t, 0, found.Attempts)
	assert.Equal(t, record.ExpiresAt.UnixMilli(), found.ExpiresAt.UnixMilli())
	assert.Equal(t, record.LastSentAt.UnixMilli(), found.LastSentAt.UnixMilli())

	attempts, err := repository.IncrementAttempts(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	attempts, err = repository.IncrementAttempts(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRedisOTPRepository_FindMissing(t *testing.T) {
	repository, _ := newRedisOTPHarness(t)

	_, err := repository.Find(context.Background(), "nobody@example.com")
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusNotFound, appError.HTTPStatus)
}

// An increment racing the record's expiry must not resurrect the key as a
// permanent hash with no TTL.
func TestRedisOTPRepository_IncrementAttemptsAfterExpiry(t *testing.T) {
	repository, server := newRedisOTPHarness(t)
	ctx := context.Background()

	now := time.Now()
	record := &OTPRecord{
		Email:      "dev@example.com",
		CodeHash:   "a-sha256-digest",
		ExpiresAt:  now.Add(time.Minute),
		LastSentAt: now,
	}
	require.NoError(t, repository.Save(ctx, record, time.Minute))

	server.FastForward(2 * time.Minute)

	_, err := repository.IncrementAttempts(ctx, "dev@example.com")
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusNotFound, appError.HTTPStatus)

	assert.False(t, server.Exists(otpKey("dev@example.com")), "expired record should not be recreated")
}
