// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package sec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// # Random Secrets

// RandomSecret returns byteLength bytes from a cryptographically secure
// source, hex-encoded. It backs API keys, magic-link tokens, and OAuth
// state nonces.
func RandomSecret(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// # Digests & Comparison

// HashSHA256Hex returns the hex-encoded SHA-256 digest of value.
// Used for OTP codes, where the search key must be deterministic.
func HashSHA256Hex(value string) string {
	digest := sha256.Sum256([]byte(value))
	return hex.EncodeToString(digest[:])
}

// ConstantTimeEquals compares two strings without leaking the position of
// the first differing byte.
//
// Both inputs are digested first so the comparison cost is independent of
// their lengths as well as their contents.
func ConstantTimeEquals(a, b string) bool {
	digestA := sha256.Sum256([]byte(a))
	digestB := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(digestA[:], digestB[:]) == 1
}

// # Lookup Key Derivation

// lookupKeyLength is the number of hex characters kept from the derived MAC.
// 64 bits of the keyed digest: wide enough to make collisions negligible,
// narrow enough to stay an opaque index.
const lookupKeyLength = 16

// DeriveLookupKey maps a raw secret to a deterministic-but-unpredictable
// index key using HMAC-SHA256 under the server secret.
//
// Stores use it to narrow candidate rows without persisting anything an
// offline attacker could reverse into the raw secret. A full constant-time
// comparison still decides the match.
func DeriveLookupKey(rawSecret string, serverSecret []byte) string {
	mac := hmac.New(sha256.New, serverSecret)
	mac.Write([]byte(rawSecret))
	return hex.EncodeToString(mac.Sum(nil))[:lookupKeyLength]
}
