// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

// # Application Layer
//
// The Service in this file orchestrates domain entities and interacts with
// repositories through interfaces. It is technology-agnostic and does not
// know about HTTP or SQL.

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/mail"
	"github.com/miracleonyenma/keygate/internal/platform/ratelimit"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
)

// Settings carries the tunable policy values of the auth domain.
//
// Zero values fall back to the package defaults, so callers only need to
// set what they want to change.
type Settings struct {
	// AppName appears in outbound email subjects and bodies.
	AppName string

	// MagicLinkBaseURL is the frontend URL the raw token is appended to.
	MagicLinkBaseURL string

	// Sender is the from-identity applied to outbound email.
	Sender mail.Sender

	// LookupSecret keys the HMAC derivation of magic-link lookup keys.
	// Must stay stable across restarts or outstanding links die early.
	LookupSecret []byte

	MagicLinkTTL        time.Duration
	MagicLinkRateLimit  int
	MagicLinkRateWindow time.Duration

	OTPTTL            time.Duration
	OTPResendCooldown time.Duration

	// OTPMaxAttempts locks a code after this many failed verifications.
	// Zero disables the lockout.
	OTPMaxAttempts int
}

// withDefaults fills unset policy values.
func (settings Settings) withDefaults() Settings {
	if settings.MagicLinkTTL <= 0 {
		settings.MagicLinkTTL = DefaultMagicLinkTTL
	}
	if settings.MagicLinkRateLimit <= 0 {
		settings.MagicLinkRateLimit = DefaultMagicLinkRateLimit
	}
	if settings.MagicLinkRateWindow <= 0 {
		settings.MagicLinkRateWindow = DefaultMagicLinkRateWindow
	}
	if settings.OTPTTL <= 0 {
		settings.OTPTTL = DefaultOTPTTL
	}
	if settings.OTPResendCooldown <= 0 {
		settings.OTPResendCooldown = DefaultOTPResendCooldown
	}
	return settings
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, token
// issuance, or verification logic must be reviewed by the security team.
type Service struct {
	accounts   AccountRepository
	roles      RoleRepository
	magicLinks MagicLinkTokenRepository
	otps       OTPRepository
	apiKeys    APIKeyRepository

	codec      *sec.Codec
	limiter    ratelimit.Limiter
	dispatcher mail.Dispatcher
	settings   Settings

	oauth *GoogleProvider
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	accounts AccountRepository,
	roles RoleRepository,
	magicLinks MagicLinkTokenRepository,
	otps OTPRepository,
	apiKeys APIKeyRepository,
	codec *sec.Codec,
	limiter ratelimit.Limiter,
	dispatcher mail.Dispatcher,
	oauth *GoogleProvider,
	settings Settings,
) *Service {
	return &Service{
		accounts:   accounts,
		roles:      roles,
		magicLinks: magicLinks,
		otps:       otps,
		apiKeys:    apiKeys,
		codec:      codec,
		limiter:    limiter,
		dispatcher: dispatcher,
		oauth:      oauth,
		settings:   settings.withDefaults(),
	}
}

// Session represents a successfully established authenticated session.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Account      *Account `json:"user"`
}

// normalizeEmail lowercases and trims an address for use as an identity key.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issueSession signs an access/refresh token pair for the account.
func (service *Service) issueSession(account *Account) (*Session, error) {
	accessToken, err := service.codec.IssueAccessToken(sec.AccessTokenData{
		UserID:        account.ID,
		Email:         account.Email,
		Roles:         account.Roles,
		EmailVerified: account.EmailVerified,
	})
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refreshToken, err := service.codec.IssueRefreshToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      account,
	}, nil
}

/*
Refresh exchanges a valid refresh token for a fresh token pair.

Parameters:
  - context: Context for the database operation.
  - refreshToken: The presented refresh token.

Returns:
  - *Session: A fresh access/refresh token pair with the current account state.
  - Returns [apperr.Unauthorized] if the token is invalid or the account is gone.

# Flow
 1. Verify the refresh token signature and expiry.
 2. Reload the account so newly granted roles reach the next access token.
 3. Issue a fresh token pair.
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (*Session, error) {

	// ── 1. Verify Token ───────────────────────────────────────────────────

	// Expired and forged tokens produce the same caller-visible error.
	claims, err := service.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 2. Reload Account ─────────────────────────────────────────────────

	account, err := service.accounts.FindByID(context, claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("Account not found or suspended")
	}

	// ── 3. Issue New Tokens ───────────────────────────────────────────────

	return service.issueSession(account)
}

// createAccount provisions a new account with the default role attached.
func (service *Service) createAccount(ctx context.Context, account *Account) error {
	if !account.HasRole(RoleUser) {
		account.Roles = append(account.Roles, RoleUser)
	}

	// The default role must be seeded; a missing role is a deployment bug.
	if _, err := service.roles.FindByName(ctx, RoleUser); err != nil {
		return fmt.Errorf("auth_service_default_role_missing: %w", err)
	}

	if err := service.accounts.Create(ctx, account); err != nil {
		return fmt.Errorf("auth_service_create_account_failed: %w", err)
	}

	return nil
}
