// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (token signing, secret
// generation, constant-time comparison) from the domain logic. It acts as an
// Infrastructure service injected into the Application layer via the
// [TokenIssuer] and [TokenVerifier] interfaces defined by consumers.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the single failure kind for token verification.
//
// # Information Hiding
//
// Callers must not distinguish "expired" from "tampered" in user-facing
// responses. The underlying cause is attached to the error chain for
// server-side logs only.
var ErrInvalidToken = errors.New("sec: invalid or expired token")

// # Claims

// AccessClaims is the payload embedded inside a JWT access token.
//
// # Why custom claims?
//
// By embedding the user's email, roles, and verification status directly in
// the JWT, the bearer gate can reconstruct the request principal WITHOUT
// querying the database on every API request.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID        string   `json:"uid"`
	Email         string   `json:"eml"`
	Roles         []string `json:"rol"`
	EmailVerified bool     `json:"emv"`
}

// RefreshClaims is the minimal payload of a refresh token. It deliberately
// carries nothing but the subject: refresh tokens live longer and should leak
// as little as possible.
type RefreshClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"uid"`
}

// # Token Codec

// Codec signs and verifies access and refresh tokens using HMAC-SHA256.
//
// Access and refresh tokens are signed with DISTINCT secrets so that
// compromise of one namespace does not compromise the other.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// CodecConfig holds the signing material and lifetimes for a [Codec].
type CodecConfig struct {
	// AccessSecret signs access tokens. Required unless LegacySecret is set.
	AccessSecret string
	// RefreshSecret signs refresh tokens. Required unless LegacySecret is set.
	RefreshSecret string
	// LegacySecret enables single-secret mode (JWT_SECRET): when AccessSecret
	// and RefreshSecret are both empty, it signs both namespaces.
	LegacySecret string

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewCodec validates the signing configuration and constructs a [Codec].
//
// Missing secrets are a startup-fatal misconfiguration, never a call-time one.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	accessSecret := cfg.AccessSecret
	refreshSecret := cfg.RefreshSecret

	// Legacy single-secret deployments set only JWT_SECRET.
	if accessSecret == "" && refreshSecret == "" && cfg.LegacySecret != "" {
		accessSecret = cfg.LegacySecret
		refreshSecret = cfg.LegacySecret
	}

	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("sec: token signing secrets are not configured (set ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET, or JWT_SECRET)")
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("sec: token TTLs must be positive")
	}

	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

// AccessTokenData is the identity snapshot stamped into an access token.
type AccessTokenData struct {
	UserID        string
	Email         string
	Roles         []string
	EmailVerified bool
}

// AccessTTL returns the configured access token lifetime.
func (codec *Codec) AccessTTL() time.Duration { return codec.accessTTL }

// IssueAccessToken signs a short-lived access token for the given identity.
func (codec *Codec) IssueAccessToken(data AccessTokenData) (string, error) {
	currentTime := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   data.UserID,
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(codec.accessTTL)),
		},
		UserID:        data.UserID,
		Email:         data.Email,
		Roles:         data.Roles,
		EmailVerified: data.EmailVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(codec.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// IssueRefreshToken signs a long-lived refresh token bound only to the subject.
func (codec *Codec) IssueRefreshToken(userID string) (string, error) {
	currentTime := time.Now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(codec.refreshTTL)),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(codec.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// VerifyAccessToken checks signature and expiry of an access token.
//
// Any failure collapses into [ErrInvalidToken]; the cause stays on the chain
// for logging.
func (codec *Codec) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := codec.verify(tokenString, claims, codec.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry of a refresh token.
func (codec *Codec) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := codec.verify(tokenString, claims, codec.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// verify parses a token into claims, restricting the accepted algorithm to HMAC.
func (codec *Codec) verify(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
