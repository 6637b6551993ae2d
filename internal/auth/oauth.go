// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
	"github.com/miracleonyenma/keygate/pkg/uuid"
)

// Google endpoint defaults. Overridable for tests.
const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	// oauthHTTPTimeout bounds each provider call.
	oauthHTTPTimeout = 10 * time.Second
)

// GoogleProvider speaks the Google OAuth2 code-exchange and userinfo
// endpoints directly over HTTP.
//
// # State Handling
//
// No server-side state is persisted between initiation and callback. CSRF
// protection comes from the HMAC-signed state parameter: the callback only
// proceeds if the signature over the nonce verifies in constant time.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	redirectURI  string
	stateSecret  []byte

	httpClient *http.Client

	authURL     string
	tokenURL    string
	userInfoURL string
}

// NewGoogleProvider constructs a provider client from OAuth credentials.
// stateSecret keys the signed state parameter and must stay stable across
// the initiation/callback round trip.
func NewGoogleProvider(clientID, clientSecret, redirectURI string, stateSecret []byte) *GoogleProvider {
	return &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		stateSecret:  stateSecret,
		httpClient:   &http.Client{Timeout: oauthHTTPTimeout},
		authURL:      googleAuthURL,
		tokenURL:     googleTokenURL,
		userInfoURL:  googleUserInfoURL,
	}
}

// Profile is the provider-reported identity fetched after code exchange.
type Profile struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

/*
BuildAuthorizationURL signs a fresh state and builds the provider URL the
user-agent is redirected to.

Returns:
  - string: The full authorization URL.
  - error: Entropy failures only.
*/
func (provider *GoogleProvider) BuildAuthorizationURL() (string, error) {
	nonce, err := sec.NewStateNonce()
	if err != nil {
		return "", fmt.Errorf("oauth_state_nonce_failed: %w", err)
	}

	query := url.Values{}
	query.Set("client_id", provider.clientID)
	query.Set("redirect_uri", provider.redirectURI)
	query.Set("response_type", "code")
	query.Set("scope", "openid email profile")
	query.Set("access_type", "offline")
	query.Set("state", sec.SignState(nonce, provider.stateSecret))

	return provider.authURL + "?" + query.Encode(), nil
}

// VerifyState checks the signed state returned by the provider callback.
func (provider *GoogleProvider) VerifyState(signedState string) bool {
	_, ok := sec.VerifyState(signedState, provider.stateSecret)
	return ok
}

// tokenResponse is the provider's code-exchange reply.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

/*
Exchange trades an authorization code for a provider access token.

Parameters:
  - context: Bounds the HTTP call alongside the client timeout.
  - code: The authorization code from the callback.

Returns:
  - string: The provider access token.
  - Returns [apperr.BadRequest] when the provider rejects the code.
*/
func (provider *GoogleProvider) Exchange(context context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", provider.clientID)
	form.Set("client_secret", provider.clientSecret)
	form.Set("redirect_uri", provider.redirectURI)
	form.Set("grant_type", "authorization_code")

	request, err := http.NewRequestWithContext(context, http.MethodPost, provider.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauth_exchange_request_failed: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("oauth_exchange_http_failed: %w", err))
	}
	defer func() { _ = response.Body.Close() }()

	var payload tokenResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return "", apperr.Internal(fmt.Errorf("oauth_exchange_decode_failed: %w", err))
	}

	if payload.Error != "" || payload.AccessToken == "" {
		return "", apperr.BadRequest("Token exchange failed")
	}

	return payload.AccessToken, nil
}

/*
FetchProfile retrieves the provider profile for an access token.

Returns:
  - *Profile: The provider-reported identity.
  - Returns [apperr.BadRequest] when the profile is missing an email.
*/
func (provider *GoogleProvider) FetchProfile(context context.Context, accessToken string) (*Profile, error) {
	request, err := http.NewRequestWithContext(context, http.MethodGet, provider.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth_profile_request_failed: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("oauth_profile_http_failed: %w", err))
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, apperr.BadRequest("Profile fetch failed")
	}

	profile := &Profile{}
	if err := json.NewDecoder(response.Body).Decode(profile); err != nil {
		return nil, apperr.Internal(fmt.Errorf("oauth_profile_decode_failed: %w", err))
	}

	if profile.Email == "" {
		return nil, apperr.BadRequest("Provider profile is missing an email address")
	}

	return profile, nil
}

// ── Service Operations ───────────────────────────────────────────────────────

/*
InitiateOAuth returns the provider authorization URL for the user-agent.

Returns:
  - Returns [apperr.ServiceUnavailable] when OAuth is not configured.
*/
func (service *Service) InitiateOAuth() (string, error) {
	if service.oauth == nil {
		return "", apperr.ServiceUnavailable("Google sign-in is not configured")
	}
	return service.oauth.BuildAuthorizationURL()
}

/*
OAuthCallback completes the provider round trip.

Parameters:
  - context: Context for provider calls and storage.
  - code: The authorization code from the provider.
  - signedState: The state parameter echoed back by the provider.
  - providerError: The provider's error parameter, if any.

Returns:
  - *Session: Access and refresh tokens plus the upserted account.
  - Returns [apperr.BadRequest] for provider errors, missing parameters,
    bad state, or failed exchange.

# Flow
 1. A provider-reported error aborts before any exchange.
 2. The signed state must verify in constant time.
 3. Exchange the code, fetch the profile, upsert the local account.
*/
func (service *Service) OAuthCallback(context context.Context, code, signedState, providerError string) (*Session, error) {
	if service.oauth == nil {
		return nil, apperr.ServiceUnavailable("Google sign-in is not configured")
	}

	// ── 1. Provider Error Short-Circuit ───────────────────────────────────

	if providerError != "" {
		return nil, apperr.BadRequest(fmt.Sprintf("Provider returned an error: %s", providerError))
	}

	if code == "" || signedState == "" {
		return nil, apperr.BadRequest("Missing code or state parameter")
	}

	// ── 2. State Verification ─────────────────────────────────────────────

	if !service.oauth.VerifyState(signedState) {
		return nil, apperr.BadRequest("Invalid state parameter")
	}

	// ── 3. Code Exchange & Profile Fetch ──────────────────────────────────

	providerToken, err := service.oauth.Exchange(context, code)
	if err != nil {
		return nil, err
	}

	profile, err := service.oauth.FetchProfile(context, providerToken)
	if err != nil {
		return nil, err
	}

	// ── 4. Account Upsert ─────────────────────────────────────────────────

	account, err := service.upsertFromProfile(context, profile)
	if err != nil {
		return nil, err
	}

	// ── 5. Token Issuance ─────────────────────────────────────────────────

	return service.issueSession(account)
}

// upsertFromProfile creates or selectively backfills an account from a
// provider profile.
func (service *Service) upsertFromProfile(ctx context.Context, profile *Profile) (*Account, error) {
	email := normalizeEmail(profile.Email)

	existing, err := service.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !apperr.IsAppError(err) {
			return nil, fmt.Errorf("auth_service_oauth_lookup_failed: %w", err)
		}

		account := &Account{
			ID:            uuid.New(),
			Email:         email,
			FirstName:     profile.GivenName,
			LastName:      profile.FamilyName,
			Picture:       profile.Picture,
			EmailVerified: profile.EmailVerified,
		}
		if err := service.createAccount(ctx, account); err != nil {
			return nil, err
		}
		return account, nil
	}

	if mergeProfile(existing, profile) {
		if err := service.accounts.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("auth_service_oauth_merge_failed: %w", err)
		}
	}

	return existing, nil
}

// mergeProfile applies the backfill policy for provider sign-ins to an
// existing account and reports whether anything changed.
//
// # Policy
//   - Verification only moves upward: a verified account never becomes
//     unverified because a provider says so.
//   - Picture and names are filled only when currently empty.
func mergeProfile(existing *Account, incoming *Profile) bool {
	changed := false

	if !existing.EmailVerified && incoming.EmailVerified {
		existing.EmailVerified = true
		changed = true
	}
	if existing.Picture == "" && incoming.Picture != "" {
		existing.Picture = incoming.Picture
		changed = true
	}
	if existing.FirstName == "" && incoming.GivenName != "" {
		existing.FirstName = incoming.GivenName
		changed = true
	}
	if existing.LastName == "" && incoming.FamilyName != "" {
		existing.LastName = incoming.FamilyName
		changed = true
	}

	return changed
}
