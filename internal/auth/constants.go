// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import "time"

// Role names seeded by the initial migration.
const (
	// RoleUser is attached to every account at creation time.
	RoleUser = "user"
	// RoleAdmin grants API-key administration rights.
	RoleAdmin = "admin"
)

// Credential sizing.
const (
	// magicLinkSecretBytes is the entropy of a raw magic-link secret.
	magicLinkSecretBytes = 32
	// apiKeySecretBytes is the entropy of a generated API key.
	apiKeySecretBytes = 32
	// otpCodeLength is the number of digits in a one-time password.
	otpCodeLength = 6
)

// Fallback policy values applied when the corresponding configuration
// setting is zero.
const (
	// DefaultMagicLinkTTL bounds how long a dispatched link stays redeemable.
	DefaultMagicLinkTTL = 15 * time.Minute
	// DefaultMagicLinkRateLimit is the request budget per email per window.
	DefaultMagicLinkRateLimit = 3
	// DefaultMagicLinkRateWindow is the fixed rate-limit window per email.
	DefaultMagicLinkRateWindow = 15 * time.Minute
	// DefaultOTPTTL bounds how long a dispatched code stays redeemable.
	DefaultOTPTTL = 10 * time.Minute
	// DefaultOTPResendCooldown is the minimum gap between code dispatches.
	DefaultOTPResendCooldown = 60 * time.Second
)
