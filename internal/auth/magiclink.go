// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/ctxutil"
	"github.com/miracleonyenma/keygate/internal/platform/mail"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
	"github.com/miracleonyenma/keygate/internal/platform/validate"
	"github.com/miracleonyenma/keygate/pkg/uuid"
)

// magicLinkRequestedMessage is returned whether or not the email has an
// account, so callers cannot probe for registered addresses.
const magicLinkRequestedMessage = "If an account exists for this address, a sign-in link has been sent."

/*
RequestMagicLink issues a single-use sign-in link for the email.

Parameters:
  - context: Context for storage and dispatch operations.
  - email: The address to send the link to.

Returns:
  - string: A uniform confirmation message.
  - Returns [apperr.ValidationError] for malformed addresses.
  - Returns [apperr.BadRequest] when the per-email request budget is spent.

# Business Rules
  - The response never reveals whether the address has an account.
  - At most one unused link is outstanding per email; a new request
    replaces any prior one.
  - Only a bcrypt hash of the secret is stored.
  - If the email cannot be dispatched the stored token is rolled back,
    so no valid link exists that was never delivered.
*/
func (service *Service) RequestMagicLink(context context.Context, email string) (string, error) {
	// ── 1. Normalize & Validate ───────────────────────────────────────────

	email = normalizeEmail(email)

	validator := &validate.Validator{}
	if err := validator.Required("email", email).Email("email", email).Err(); err != nil {
		return "", err
	}

	// ── 2. Rate Limit ─────────────────────────────────────────────────────

	decision, err := service.limiter.Allow(context, "magic_link:"+email, service.settings.MagicLinkRateLimit, service.settings.MagicLinkRateWindow)
	if err != nil {
		return "", fmt.Errorf("auth_service_rate_limit_failed: %w", err)
	}
	if !decision.Allowed {
		minutes := int(decision.RetryAfter.Minutes()) + 1
		return "", apperr.BadRequest(fmt.Sprintf("Too many requests. Try again in %d minutes", minutes))
	}

	// ── 3. Account Lookup (silent on absence) ─────────────────────────────

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		if apperr.IsAppError(err) {
			// Unknown address: return the same message without issuing anything.
			return magicLinkRequestedMessage, nil
		}
		return "", fmt.Errorf("auth_service_magic_link_lookup_failed: %w", err)
	}

	// ── 4. Issue & Persist Token ──────────────────────────────────────────

	rawSecret, err := sec.RandomSecret(magicLinkSecretBytes)
	if err != nil {
		return "", fmt.Errorf("auth_service_magic_link_secret_failed: %w", err)
	}

	tokenHash, err := sec.HashMagicToken(rawSecret)
	if err != nil {
		return "", fmt.Errorf("auth_service_magic_link_hash_failed: %w", err)
	}

	// Supersede any outstanding unused link before storing the new one.
	if err := service.magicLinks.DeleteUnusedByEmail(context, email); err != nil {
		return "", fmt.Errorf("auth_service_magic_link_supersede_failed: %w", err)
	}

	token := &MagicLinkToken{
		ID:        uuid.New(),
		Email:     email,
		TokenHash: tokenHash,
		LookupKey: sec.DeriveLookupKey(rawSecret, service.settings.LookupSecret),
		ExpiresAt: time.Now().Add(service.settings.MagicLinkTTL),
	}

	if err := service.magicLinks.Create(context, token); err != nil {
		return "", fmt.Errorf("auth_service_magic_link_store_failed: %w", err)
	}

	// ── 5. Dispatch (with rollback) ───────────────────────────────────────

	link := fmt.Sprintf("%s?token=%s", service.settings.MagicLinkBaseURL, url.QueryEscape(rawSecret))

	message, err := mail.BuildMagicLink(service.settings.Sender, service.settings.AppName, account.Email, link, service.settings.MagicLinkTTL)
	if err != nil {
		_ = service.magicLinks.Delete(context, token.ID)
		return "", fmt.Errorf("auth_service_magic_link_build_failed: %w", err)
	}

	if err := service.dispatcher.Dispatch(context, message); err != nil {
		// Roll back: an undeliverable link must not stay redeemable.
		if rollbackErr := service.magicLinks.Delete(context, token.ID); rollbackErr != nil {
			ctxutil.GetLogger(context).ErrorContext(context, "magic_link_rollback_failed",
				slog.String("token_id", token.ID),
				slog.Any("error", rollbackErr),
			)
		}
		return "", apperr.Internal(fmt.Errorf("auth_service_magic_link_dispatch_failed: %w", err))
	}

	// ── 6. Uniform Response ───────────────────────────────────────────────

	return magicLinkRequestedMessage, nil
}

/*
VerifyMagicLink redeems a raw link secret for an authenticated session.

Parameters:
  - context: Context for the database operation.
  - rawToken: The secret captured from the emailed link.

Returns:
  - *Session: Access and refresh tokens plus the account.
  - Returns [apperr.ValidationError] on empty input.
  - Returns [apperr.Unauthorized] for unknown, used, or expired tokens.

# Flow
 1. Narrow candidates by the HMAC-derived lookup key.
 2. Compare the raw secret against each candidate's bcrypt hash.
 3. Mark the matching token used BEFORE issuing tokens, so a crash in
    between cannot leave a reusable link.
*/
func (service *Service) VerifyMagicLink(context context.Context, rawToken string) (*Session, error) {
	// ── 1. Validate Input ─────────────────────────────────────────────────

	validator := &validate.Validator{}
	if err := validator.Required("token", rawToken).Err(); err != nil {
		return nil, err
	}

	// ── 2. Candidate Narrowing & Constant-Time Match ──────────────────────

	lookupKey := sec.DeriveLookupKey(rawToken, service.settings.LookupSecret)
	candidates, err := service.magicLinks.FindCandidates(context, lookupKey)
	if err != nil {
		return nil, fmt.Errorf("auth_service_magic_link_candidates_failed: %w", err)
	}

	var matched *MagicLinkToken
	for _, candidate := range candidates {
		if sec.CompareMagicToken(rawToken, candidate.TokenHash) {
			matched = candidate
			break
		}
	}

	// Expired and forged tokens produce the same caller-visible error.
	if matched == nil {
		return nil, apperr.Unauthorized("Sign-in link is invalid or expired")
	}

	// ── 3. Load Account ───────────────────────────────────────────────────

	account, err := service.accounts.FindByEmail(context, matched.Email)
	if err != nil {
		// A valid token without an account indicates an upstream bug.
		ctxutil.GetLogger(context).ErrorContext(context, "magic_link_orphaned_token",
			slog.String("token_id", matched.ID),
		)
		return nil, apperr.Unauthorized("Sign-in link is invalid or expired")
	}

	// ── 4. Consume Token (before issuing anything) ────────────────────────

	if err := service.magicLinks.MarkUsed(context, matched.ID); err != nil {
		if apperr.IsAppError(err) {
			// Lost a race with a concurrent redemption.
			return nil, apperr.Unauthorized("Sign-in link is invalid or expired")
		}
		return nil, fmt.Errorf("auth_service_magic_link_consume_failed: %w", err)
	}

	// ── 5. Verified Email & Token Issuance ────────────────────────────────

	if !account.EmailVerified {
		if err := service.accounts.SetEmailVerified(context, account.ID, true); err != nil {
			return nil, fmt.Errorf("auth_service_magic_link_verify_flag_failed: %w", err)
		}
		account.EmailVerified = true
	}

	return service.issueSession(account)
}

/*
CleanupExpiredMagicLinks removes tokens past their expiry.

Intended to be called by the periodic background worker.

Returns:
  - int64: Number of rows removed
  - error: Storage failures
*/
func (service *Service) CleanupExpiredMagicLinks(context context.Context) (int64, error) {
	removed, err := service.magicLinks.DeleteExpired(context)
	if err != nil {
		return 0, fmt.Errorf("auth_service_magic_link_cleanup_failed: %w", err)
	}
	return removed, nil
}
