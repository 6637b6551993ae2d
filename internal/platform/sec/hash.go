// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// magicTokenCost is the bcrypt work factor for magic-link tokens at rest.
// Matches the cost the email-link TTL budget tolerates: verification scans a
// candidate set, so each compare must stay in the low tens of milliseconds.
const magicTokenCost = 12

// HashMagicToken hashes a raw magic-link secret for storage.
// The raw secret is only ever dispatched by email, never persisted.
func HashMagicToken(rawToken string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(rawToken), magicTokenCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash magic token: %w", err)
	}
	return string(hashedBytes), nil
}

// CompareMagicToken compares a raw magic-link secret against its stored hash.
// bcrypt's comparison is constant-time with respect to the hash contents.
func CompareMagicToken(rawToken, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(rawToken))
	return err == nil
}
