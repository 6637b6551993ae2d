// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/mail"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
	"github.com/miracleonyenma/keygate/internal/platform/validate"
	"github.com/miracleonyenma/keygate/pkg/uuid"
)

// otpRequestedMessage mirrors the magic-link flow: the response shape does
// not reveal account state.
const otpRequestedMessage = "A verification code has been sent."

// generateOTPCode produces a zero-padded numeric code of otpCodeLength digits.
func generateOTPCode() (string, error) {
	upperBound := big.NewInt(1)
	for digit := 0; digit < otpCodeLength; digit++ {
		upperBound.Mul(upperBound, big.NewInt(10))
	}

	value, err := rand.Int(rand.Reader, upperBound)
	if err != nil {
		return "", fmt.Errorf("otp_code_generation_failed: %w", err)
	}

	return fmt.Sprintf("%0*d", otpCodeLength, value), nil
}

/*
RequestOTP issues a one-time password for the email.

Parameters:
  - context: Context for storage and dispatch operations.
  - email: The address to send the code to.

Returns:
  - string: A confirmation message.
  - Returns [apperr.ValidationError] for malformed addresses.
  - Returns [apperr.BadRequest] when requested again within the resend cooldown.

# Business Rules
  - An account is provisioned on first contact, so verification can
    precede profile completion.
  - A new code overwrites any outstanding one for the email.
  - Only a SHA-256 digest of the code is stored.
  - Dispatch failure is surfaced but the stored code remains redeemable.
*/
func (service *Service) RequestOTP(context context.Context, email string) (string, error) {
	// ── 1. Normalize & Validate ───────────────────────────────────────────

	email = normalizeEmail(email)

	validator := &validate.Validator{}
	if err := validator.Required("email", email).Email("email", email).Err(); err != nil {
		return "", err
	}

	// ── 2. Resend Cooldown ────────────────────────────────────────────────

	if existing, err := service.otps.Find(context, email); err == nil {
		elapsed := time.Since(existing.LastSentAt)
		if elapsed < service.settings.OTPResendCooldown {
			wait := int((service.settings.OTPResendCooldown - elapsed).Seconds()) + 1
			return "", apperr.BadRequest(fmt.Sprintf("Please wait %d seconds before requesting a new code", wait))
		}
	}

	// ── 3. Account Lookup or Provisioning ─────────────────────────────────

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		if !apperr.IsAppError(err) {
			return "", fmt.Errorf("auth_service_otp_lookup_failed: %w", err)
		}

		account = &Account{
			ID:    uuid.New(),
			Email: email,
		}
		if err := service.createAccount(context, account); err != nil {
			return "", err
		}
	}

	// ── 4. Generate & Store Code ──────────────────────────────────────────

	code, err := generateOTPCode()
	if err != nil {
		return "", fmt.Errorf("auth_service_otp_generate_failed: %w", err)
	}

	now := time.Now()
	record := &OTPRecord{
		Email:      email,
		CodeHash:   sec.HashSHA256Hex(code),
		Attempts:   0,
		ExpiresAt:  now.Add(service.settings.OTPTTL),
		LastSentAt: now,
	}

	if err := service.otps.Save(context, record, service.settings.OTPTTL); err != nil {
		return "", fmt.Errorf("auth_service_otp_store_failed: %w", err)
	}

	// ── 5. Dispatch (no rollback) ─────────────────────────────────────────

	// Unlike magic links, a failed dispatch leaves the code stored: the
	// user can retry the request after the cooldown and the old code
	// simply gets overwritten.
	message, err := mail.BuildOTP(service.settings.Sender, service.settings.AppName, account.Email, code, service.settings.OTPTTL)
	if err != nil {
		return "", fmt.Errorf("auth_service_otp_build_failed: %w", err)
	}

	if err := service.dispatcher.Dispatch(context, message); err != nil {
		return "", apperr.Internal(fmt.Errorf("auth_service_otp_dispatch_failed: %w", err))
	}

	return otpRequestedMessage, nil
}

/*
VerifyOTP redeems a one-time password.

Parameters:
  - context: Context for the database operation.
  - email: The address the code was dispatched to.
  - code: The submitted code.
  - shouldLogin: When true, a token pair is issued alongside verification.

Returns:
  - *Session: Tokens when shouldLogin is true, otherwise a session with
    only the account populated.
  - Returns [apperr.Unauthorized] for missing, expired, or mismatched codes.

# Flow
 1. Load the outstanding record; absence and expiry are indistinguishable
    to the caller.
 2. Compare digests in constant time; a mismatch increments the attempt
    counter before failing.
 3. A match clears the record and flips the account's verified flag.
*/
func (service *Service) VerifyOTP(context context.Context, email, code string, shouldLogin bool) (*Session, error) {
	// ── 1. Normalize & Validate ───────────────────────────────────────────

	email = normalizeEmail(email)

	validator := &validate.Validator{}
	if err := validator.
		Required("email", email).Email("email", email).
		Required("code", code).Digits("code", code, otpCodeLength).
		Err(); err != nil {
		return nil, err
	}

	// ── 2. Load Record ────────────────────────────────────────────────────

	record, err := service.otps.Find(context, email)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.Unauthorized("Code is invalid or expired")
		}
		return nil, fmt.Errorf("auth_service_otp_find_failed: %w", err)
	}

	if record.Expired(time.Now()) {
		return nil, apperr.Unauthorized("Code has expired")
	}

	// ── 3. Optional Lockout ───────────────────────────────────────────────

	if service.settings.OTPMaxAttempts > 0 && record.Attempts >= service.settings.OTPMaxAttempts {
		return nil, apperr.Unauthorized("Too many incorrect attempts. Request a new code")
	}

	// ── 4. Compare Digests ────────────────────────────────────────────────

	if !sec.ConstantTimeEquals(sec.HashSHA256Hex(code), record.CodeHash) {
		// A NotFound here means the record expired mid-verify; the caller
		// still just sees a rejected code.
		if _, err := service.otps.IncrementAttempts(context, email); err != nil && !apperr.IsAppError(err) {
			return nil, fmt.Errorf("auth_service_otp_attempts_failed: %w", err)
		}
		return nil, apperr.Unauthorized("Incorrect code")
	}

	// ── 5. Consume & Mark Verified ────────────────────────────────────────

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		return nil, apperr.Unauthorized("Code is invalid or expired")
	}

	if err := service.otps.Delete(context, email); err != nil {
		return nil, fmt.Errorf("auth_service_otp_consume_failed: %w", err)
	}

	if !account.EmailVerified {
		if err := service.accounts.SetEmailVerified(context, account.ID, true); err != nil {
			return nil, fmt.Errorf("auth_service_otp_verify_flag_failed: %w", err)
		}
		account.EmailVerified = true
	}

	// ── 6. Optional Login ─────────────────────────────────────────────────

	if !shouldLogin {
		return &Session{Account: account}, nil
	}

	return service.issueSession(account)
}
