// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

// Package auth implements the authentication and token lifecycle domain:
// passwordless sign-in (magic link, one-time password), Google OAuth,
// bearer token issuance and API-key-gated service access.
//
// # Architecture
//
// Entities in this file represent the "Truth" of the system.
// They have no dependencies on outer layers (like databases, APIs, or libraries).
// This makes the core logic highly testable and resilient to technology changes.
package auth

import (
	"time"
)

// Account represents a registered identity in Keygate.
//
// # Rules
//   - Email is unique, stored lowercased and trimmed.
//   - Accounts have no password: they authenticate via magic link, OTP or OAuth.
//   - EmailVerified flips to true on first successful OTP or magic-link
//     verification, or arrives pre-set from a trusted OAuth provider.
//   - Roles always contains at least the default "user" role.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	Roles         []string  `json:"roles"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasRole reports whether the account carries the named role.
func (account *Account) HasRole(name string) bool {
	for _, role := range account.Roles {
		if role == name {
			return true
		}
	}
	return false
}

// Role is a named authorization grant attachable to accounts.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MagicLinkToken is a single-use, email-delivered sign-in credential.
//
// # Security Concept
//
// Only a bcrypt hash of the secret is persisted; the raw secret exists
// solely inside the dispatched email. LookupKey is a short HMAC-derived
// prefix used to narrow candidates without creating a timing oracle:
// candidates are still compared with a constant-time bcrypt check.
type MagicLinkToken struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	TokenHash string    `json:"-"` // Bcrypt hash of the raw secret. Omitted for security.
	LookupKey string    `json:"-"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the token can no longer authenticate on time grounds.
func (token *MagicLinkToken) Expired(now time.Time) bool {
	return now.After(token.ExpiresAt)
}

// OTPRecord is the stored form of an outstanding one-time password.
//
// # Rules
//   - CodeHash is a SHA-256 hex digest; the raw code is never stored.
//   - A new request overwrites any prior record for the same email.
//   - Attempts counts failed verifications against this code.
type OTPRecord struct {
	Email      string    `json:"email"`
	CodeHash   string    `json:"-"`
	Attempts   int       `json:"attempts"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSentAt time.Time `json:"last_sent_at"`
}

// Expired reports whether the code can no longer be redeemed.
func (record *OTPRecord) Expired(now time.Time) bool {
	return now.After(record.ExpiresAt)
}

// APIKey is an opaque machine credential owned by an account.
//
// # Storage Note
//
// The secret is stored and compared as plaintext: validation is a lookup,
// not a derivation. Treat the backing table as sensitive.
type APIKey struct {
	ID        string    `json:"id"`
	Secret    string    `json:"-"` // Never serialized after creation.
	OwnerID   string    `json:"owner_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
