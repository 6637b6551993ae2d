// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package sec

import "time"

// # Request Principal

// PrincipalSource records which gate authenticated a request.
type PrincipalSource string

const (
	// SourceBearer marks a principal resolved from a verified access token.
	SourceBearer PrincipalSource = "bearer"

	// SourceAPIKey marks a principal resolved from a validated API key owner.
	SourceAPIKey PrincipalSource = "api_key"
)

// Principal is the authenticated actor resolved from a request.
//
// It is constructed transiently per request from a verified bearer token or
// an API key owner lookup and never persisted as its own entity.
type Principal struct {
	UserID        string
	Email         string
	Roles         []string
	EmailVerified bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Source        PrincipalSource
}

// HasRole reports whether the principal carries the exact role name.
func (p *Principal) HasRole(role UserRole) bool {
	for _, name := range p.Roles {
		if UserRole(name) == role {
			return true
		}
	}
	return false
}

// AtLeast reports whether any of the principal's roles meets or exceeds the
// target role in the hierarchy.
func (p *Principal) AtLeast(target UserRole) bool {
	for _, name := range p.Roles {
		if UserRole(name).AtLeast(target) {
			return true
		}
	}
	return false
}

// PrincipalFromAccessClaims builds the request principal out of verified
// access token claims.
func PrincipalFromAccessClaims(claims *AccessClaims) *Principal {
	principal := &Principal{
		UserID:        claims.UserID,
		Email:         claims.Email,
		Roles:         claims.Roles,
		EmailVerified: claims.EmailVerified,
		Source:        SourceBearer,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal
}
