// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"time"
)

// AccountRepository defines the data access contract for identities.
//
// # Review Process
//
// This interface is placed in a separate file from account.go so entity
// changes and storage-contract changes can be reviewed independently.
//
// # Implementations
//
// The canonical implementation for Keygate is PostgreSQL (store_postgres.go).
type AccountRepository interface {
	// FindByID returns the account with the given ID, roles included.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByID(ctx context.Context, id string) (*Account, error)

	// FindByEmail returns the account with the given (normalized) email.
	//
	// Returns [apperr.NotFound] if no account is registered with this email.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// Create persists a brand-new account and attaches its initial roles.
	//
	// Returns a wrapped error if the email unique constraint fails.
	Create(ctx context.Context, account *Account) error

	// Update persists changes to mutable profile fields
	// (FirstName, LastName, Picture, EmailVerified).
	Update(ctx context.Context, account *Account) error

	// SetEmailVerified flips only the verified flag.
	// Separate from [Update] so credential flows never touch profile fields.
	SetEmailVerified(ctx context.Context, accountID string, verified bool) error
}

// RoleRepository defines the data access contract for role grants.
type RoleRepository interface {
	// FindByName returns the role with the given name.
	//
	// Returns [apperr.NotFound] if the role is not seeded.
	FindByName(ctx context.Context, name string) (*Role, error)

	// Assign attaches a role to an account. Assigning an already-held
	// role is a no-op.
	Assign(ctx context.Context, accountID, roleID string) error
}

// MagicLinkTokenRepository defines the contract for single-use sign-in tokens.
//
// # Domain Ownership
//
// Kept alongside [AccountRepository] because tokens are owned entirely by
// the auth domain, despite being volatile credentials.
type MagicLinkTokenRepository interface {
	// Create persists a freshly issued token record.
	Create(ctx context.Context, token *MagicLinkToken) error

	// FindCandidates returns all unused, unexpired tokens whose lookup
	// key matches. The caller performs the constant-time hash comparison;
	// the lookup key only narrows the candidate set.
	FindCandidates(ctx context.Context, lookupKey string) ([]*MagicLinkToken, error)

	// MarkUsed flips the used flag exactly once.
	//
	// Returns [apperr.NotFound] if the token was already used or deleted,
	// so concurrent redemptions cannot both succeed.
	MarkUsed(ctx context.Context, tokenID string) error

	// DeleteUnusedByEmail removes every outstanding unused token for the
	// email. Called before issuing a replacement so at most one unused
	// token exists per email.
	DeleteUnusedByEmail(ctx context.Context, email string) error

	// Delete removes a specific token record. Used to roll back issuance
	// when the email dispatch fails.
	Delete(ctx context.Context, tokenID string) error

	// DeleteExpired physically removes tokens past their expiry.
	// Intended to be called by a periodic background cleanup worker.
	DeleteExpired(ctx context.Context) (int64, error)
}

// OTPRepository defines the contract for volatile one-time password records.
//
// # Implementations
//
// Backed by Redis: records are keyed by email and expire natively with
// the code's TTL.
type OTPRepository interface {
	// Save stores (or overwrites) the record for its email with the given TTL.
	Save(ctx context.Context, record *OTPRecord, ttl time.Duration) error

	// Find returns the outstanding record for the email.
	//
	// Returns [apperr.NotFound] if none exists or it has expired away.
	Find(ctx context.Context, email string) (*OTPRecord, error)

	// IncrementAttempts adds one to the stored attempt counter and
	// returns the new value.
	IncrementAttempts(ctx context.Context, email string) (int, error)

	// Delete removes the record after successful verification.
	Delete(ctx context.Context, email string) error
}

// APIKeyRepository defines the contract for machine credentials.
type APIKeyRepository interface {
	// Create persists a new key.
	Create(ctx context.Context, key *APIKey) error

	// FindBySecret returns the key matching the given secret.
	//
	// Returns [apperr.NotFound] if no key matches.
	FindBySecret(ctx context.Context, secret string) (*APIKey, error)

	// ListByOwner returns every key belonging to the account,
	// newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*APIKey, error)

	// Delete revokes a key permanently.
	Delete(ctx context.Context, keyID string) error
}
