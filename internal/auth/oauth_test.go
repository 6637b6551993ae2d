// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
)

// fakeGoogle simulates the provider's token and userinfo endpoints.
type fakeGoogle struct {
	server *httptest.Server

	acceptCode string
	profile    Profile
}

func newFakeGoogle(t *testing.T, acceptCode string, profile Profile) *fakeGoogle {
	t.Helper()
	google := &fakeGoogle{acceptCode: acceptCode, profile: profile}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(writer http.ResponseWriter, request *http.Request) {
		require.NoError(t, request.ParseForm())
		writer.Header().Set("Content-Type", "application/json")
		if request.PostFormValue("code") != google.acceptCode {
			_ = json.NewEncoder(writer).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "Bad authorization code.",
			})
			return
		}
		_ = json.NewEncoder(writer).Encode(map[string]string{"access_token": "provider-access-token"})
	})
	mux.HandleFunc("/userinfo", func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer provider-access-token" {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(google.profile)
	})

	google.server = httptest.NewServer(mux)
	t.Cleanup(google.server.Close)
	return google
}

// attach points a provider at the fake endpoints.
func (google *fakeGoogle) attach(provider *GoogleProvider) {
	provider.httpClient = google.server.Client()
	provider.tokenURL = google.server.URL + "/token"
	provider.userInfoURL = google.server.URL + "/userinfo"
}

// oauthHarness wires a harness with a configured provider.
func oauthHarness(t *testing.T, google *fakeGoogle) *harness {
	t.Helper()
	h := newHarness(t, Settings{})
	provider := NewGoogleProvider("client-id", "client-secret", "http://localhost:8080/api/v1/auth/google/callback", []byte("state-secret"))
	if google != nil {
		google.attach(provider)
	}
	h.service.oauth = provider
	return h
}

// signedState issues a state the service would accept.
func signedState(t *testing.T) string {
	t.Helper()
	nonce, err := sec.NewStateNonce()
	require.NoError(t, err)
	return sec.SignState(nonce, []byte("state-secret"))
}

func TestInitiateOAuth_BuildsAuthorizationURL(t *testing.T) {
	h := oauthHarness(t, nil)

	rawURL, err := h.service.InitiateOAuth()
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Contains(t, query.Get("scope"), "email")

	// The embedded state must verify with the provider secret.
	_, ok := sec.VerifyState(query.Get("state"), []byte("state-secret"))
	assert.True(t, ok)
}

func TestInitiateOAuth_Unconfigured(t *testing.T) {
	h := newHarness(t, Settings{})

	_, err := h.service.InitiateOAuth()
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusServiceUnavailable, appError.HTTPStatus)
}

/*
TestOAuthCallback_NewAccount verifies the full round trip provisions an
account from the provider profile and issues a session.
*/
func TestOAuthCallback_NewAccount(t *testing.T) {
	google := newFakeGoogle(t, "good-code", Profile{
		Email:         "Fresh@Test.com",
		EmailVerified: true,
		GivenName:     "Ada",
		FamilyName:    "Lovelace",
		Picture:       "https://img.test/ada.png",
	})
	h := oauthHarness(t, google)
	ctx := context.Background()

	session, err := h.service.OAuthCallback(ctx, "good-code", signedState(t), "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	account := session.Account
	assert.Equal(t, "fresh@test.com", account.Email)
	assert.Equal(t, "Ada", account.FirstName)
	assert.Equal(t, "Lovelace", account.LastName)
	assert.True(t, account.EmailVerified)
	assert.Contains(t, account.Roles, RoleUser)
}

/*
TestOAuthCallback_BackfillsExistingAccount verifies the merge policy on a
returning address.
*/
func TestOAuthCallback_BackfillsExistingAccount(t *testing.T) {
	google := newFakeGoogle(t, "good-code", Profile{
		Email:         "user@test.com",
		EmailVerified: true,
		GivenName:     "Grace",
		Picture:       "https://img.test/grace.png",
	})
	h := oauthHarness(t, google)
	ctx := context.Background()

	existing := h.seedAccount(t, "user@test.com", false)
	existing.FirstName = "Kept"
	require.NoError(t, h.accounts.Update(ctx, existing))

	session, err := h.service.OAuthCallback(ctx, "good-code", signedState(t), "")
	require.NoError(t, err)

	account := session.Account
	assert.Equal(t, existing.ID, account.ID)
	assert.Equal(t, "Kept", account.FirstName, "non-empty fields are never overwritten")
	assert.Equal(t, "https://img.test/grace.png", account.Picture)
	assert.True(t, account.EmailVerified)
}

func TestOAuthCallback_ProviderError(t *testing.T) {
	h := oauthHarness(t, nil)

	_, err := h.service.OAuthCallback(context.Background(), "", "", "access_denied")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
	assert.Contains(t, appError.Message, "access_denied")
}

func TestOAuthCallback_MissingParameters(t *testing.T) {
	h := oauthHarness(t, nil)
	ctx := context.Background()

	_, err := h.service.OAuthCallback(ctx, "", signedState(t), "")
	require.Error(t, err)

	_, err = h.service.OAuthCallback(ctx, "some-code", "", "")
	require.Error(t, err)
}

func TestOAuthCallback_InvalidState(t *testing.T) {
	h := oauthHarness(t, nil)
	ctx := context.Background()

	// Signed with the wrong secret.
	nonce, err := sec.NewStateNonce()
	require.NoError(t, err)
	forged := sec.SignState(nonce, []byte("attacker-secret"))

	_, err = h.service.OAuthCallback(ctx, "some-code", forged, "")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
	assert.Contains(t, appError.Message, "state")

	_, err = h.service.OAuthCallback(ctx, "some-code", "garbage-no-dot", "")
	require.Error(t, err)
}

func TestOAuthCallback_RejectedCode(t *testing.T) {
	google := newFakeGoogle(t, "good-code", Profile{Email: "user@test.com"})
	h := oauthHarness(t, google)

	_, err := h.service.OAuthCallback(context.Background(), "stolen-code", signedState(t), "")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
}

func TestOAuthCallback_ProfileMissingEmail(t *testing.T) {
	google := newFakeGoogle(t, "good-code", Profile{EmailVerified: true})
	h := oauthHarness(t, google)

	_, err := h.service.OAuthCallback(context.Background(), "good-code", signedState(t), "")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
}

func TestMergeProfile(t *testing.T) {
	tests := []struct {
		name        string
		existing    Account
		incoming    Profile
		wantChanged bool
		check       func(t *testing.T, merged Account)
	}{
		{
			name:        "verification moves upward",
			existing:    Account{EmailVerified: false},
			incoming:    Profile{EmailVerified: true},
			wantChanged: true,
			check: func(t *testing.T, merged Account) {
				assert.True(t, merged.EmailVerified)
			},
		},
		{
			name:        "verification never moves downward",
			existing:    Account{EmailVerified: true},
			incoming:    Profile{EmailVerified: false},
			wantChanged: false,
			check: func(t *testing.T, merged Account) {
				assert.True(t, merged.EmailVerified)
			},
		},
		{
			name:        "empty fields are backfilled",
			existing:    Account{EmailVerified: true},
			incoming:    Profile{GivenName: "Ada", FamilyName: "Lovelace", Picture: "p.png"},
			wantChanged: true,
			check: func(t *testing.T, merged Account) {
				assert.Equal(t, "Ada", merged.FirstName)
				assert.Equal(t, "Lovelace", merged.LastName)
				assert.Equal(t, "p.png", merged.Picture)
			},
		},
		{
			name:        "populated fields are preserved",
			existing:    Account{FirstName: "Kept", LastName: "Also", Picture: "old.png", EmailVerified: true},
			incoming:    Profile{GivenName: "New", FamilyName: "Name", Picture: "new.png"},
			wantChanged: false,
			check: func(t *testing.T, merged Account) {
				assert.Equal(t, "Kept", merged.FirstName)
				assert.Equal(t, "Also", merged.LastName)
				assert.Equal(t, "old.png", merged.Picture)
			},
		},
		{
			name:        "no-op profile reports unchanged",
			existing:    Account{EmailVerified: true},
			incoming:    Profile{},
			wantChanged: false,
			check:       func(t *testing.T, merged Account) {},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			account := test.existing
			changed := mergeProfile(&account, &test.incoming)
			assert.Equal(t, test.wantChanged, changed)
			test.check(t, account)
		})
	}
}
