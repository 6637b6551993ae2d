// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/constants"
)

// RedisOTPRepository implements OTPRepository using Redis.
//
// # Data Model
//
// Each email maps to one hash under the auth:otp: prefix holding the code
// hash, attempt counter, expiry and last-sent timestamp. The whole hash
// carries the code's TTL, so expired records vanish without a sweeper.
type RedisOTPRepository struct {
	client *redis.Client
}

// NewOTPRepository creates a new Redis-backed OTPRepository.
func NewOTPRepository(client *redis.Client) *RedisOTPRepository {
	return &RedisOTPRepository{client: client}
}

// Hash field names for OTP records.
const (
	otpFieldCodeHash   = "code_hash"
	otpFieldAttempts   = "attempts"
	otpFieldExpiresAt  = "expires_at"
	otpFieldLastSentAt = "last_sent_at"
)

// otpKey builds the Redis key for an email's record.
func otpKey(email string) string {
	return fmt.Sprintf("%s%s", constants.RedisPrefixOTP, email)
}

/*
Save stores (or overwrites) the record for its email with the given TTL.

Parameters:
  - context: context.Context
  - record: *OTPRecord
  - ttl: time.Duration

Returns:
  - error: Storage failures
*/
func (repository *RedisOTPRepository) Save(context context.Context, record *OTPRecord, ttl time.Duration) error {

	// Use constants for key prefix
	key := otpKey(record.Email)

	// Overwrite atomically: delete any prior record, write fields, attach TTL.
	pipeline := repository.client.TxPipeline()
	pipeline.Del(context, key)
	pipeline.HSet(context, key,
		otpFieldCodeHash, record.CodeHash,
		otpFieldAttempts, record.Attempts,
		otpFieldExpiresAt, record.ExpiresAt.UnixMilli(),
		otpFieldLastSentAt, record.LastSentAt.UnixMilli(),
	)
	pipeline.Expire(context, key, ttl)

	if _, err := pipeline.Exec(context); err != nil {
		return fmt.Errorf("redis_otp_save_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Find retrieves the outstanding record for the email.

Description: Returns apperr.NotFound if the record is absent or expired away.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *OTPRecord: The stored record
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisOTPRepository) Find(context context.Context, email string) (*OTPRecord, error) {

	// Use constants for key prefix
	key := otpKey(email)

	// Fetch all hash fields
	fields, err := repository.client.HGetAll(context, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_otp_find_failed: %w", err)
	}

	// HGetAll returns an empty map (not redis.Nil) for missing keys
	if len(fields) == 0 {
		return nil, apperr.NotFound("Verification code")
	}

	record := &OTPRecord{
		Email:    email,
		CodeHash: fields[otpFieldCodeHash],
	}

	if rawAttempts, ok := fields[otpFieldAttempts]; ok {
		record.Attempts, _ = strconv.Atoi(rawAttempts)
	}
	if rawExpiresAt, ok := fields[otpFieldExpiresAt]; ok {
		milliseconds, parseErr := strconv.ParseInt(rawExpiresAt, 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("redis_otp_parse_expiry_failed: %w", parseErr)
		}
		record.ExpiresAt = time.UnixMilli(milliseconds)
	}
	if rawLastSentAt, ok := fields[otpFieldLastSentAt]; ok {
		milliseconds, parseErr := strconv.ParseInt(rawLastSentAt, 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("redis_otp_parse_last_sent_failed: %w", parseErr)
		}
		record.LastSentAt = time.UnixMilli(milliseconds)
	}

	// Return the record
	return record, nil
}

/*
IncrementAttempts adds one to the stored attempt counter.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - int: The new attempt count
  - error: Execution failures
*/
func (repository *RedisOTPRepository) IncrementAttempts(context context.Context, email string) (int, error) {

	// Use constants for key prefix
	key := otpKey(email)

	// HIncrBy recreates the key without a TTL if the record expired since
	// the last Find, so the increment and a TTL probe run as one unit.
	pipeline := repository.client.TxPipeline()
	increment := pipeline.HIncrBy(context, key, otpFieldAttempts, 1)
	lifetime := pipeline.PTTL(context, key)

	if _, err := pipeline.Exec(context); err != nil {
		return 0, fmt.Errorf("redis_otp_increment_attempts_failed: %w", err)
	}

	// A negative PTTL means the increment resurrected an expired record.
	// Drop the stray key and report the code gone.
	if lifetime.Val() < 0 {
		if err := repository.client.Del(context, key).Err(); err != nil {
			return 0, fmt.Errorf("redis_otp_increment_attempts_failed: %w", err)
		}
		return 0, apperr.NotFound("Verification code")
	}

	return int(increment.Val()), nil
}

/*
Delete removes the record from Redis.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisOTPRepository) Delete(context context.Context, email string) error {

	// Use constants for key prefix
	key := otpKey(email)

	// Delete the record from Redis
	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_otp_delete_failed: %w", err)
	}

	// Return nil on success
	return nil
}
