// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/ctxutil"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
)

// stubVerifier accepts exactly one token value.
type stubVerifier struct {
	valid  string
	claims *sec.AccessClaims
}

func (verifier *stubVerifier) VerifyAccessToken(token string) (*sec.AccessClaims, error) {
	if token == verifier.valid {
		return verifier.claims, nil
	}
	return nil, sec.ErrInvalidToken
}

// stubKeyValidator accepts exactly one secret value.
type stubKeyValidator struct {
	valid     string
	principal *sec.Principal
}

func (validator *stubKeyValidator) ValidateAPIKey(_ context.Context, secret string) (*sec.Principal, error) {
	if secret == validator.valid {
		return validator.principal, nil
	}
	return nil, apperr.Unauthorized("Invalid API key")
}

// capturingHandler records the principal seen by the downstream handler.
func capturingHandler(captured **sec.Principal) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		*captured = ctxutil.GetPrincipal(request.Context())
		writer.WriteHeader(http.StatusOK)
	})
}

func validClaims() *sec.AccessClaims {
	return &sec.AccessClaims{UserID: "user-1", Email: "user@test.com", Roles: []string{"user"}}
}

/*
TestExtractBearerToken covers the defensive header parsing rules.
*/
func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"plain bearer", "Bearer aaa.bbb.ccc", "aaa.bbb.ccc"},
		{"lowercase scheme", "bearer aaa.bbb.ccc", "aaa.bbb.ccc"},
		{"no header", "", ""},
		{"scheme only", "Bearer", ""},
		{"no dot means no token", "Bearer opaquevalue", ""},
		{"comma merged duplicates", "Bearer aaa.bbb.ccc, Bearer ddd.eee.fff", "ddd.eee.fff"},
		{"repeated scheme words", "Bearer Bearer aaa.bbb.ccc", "aaa.bbb.ccc"},
		{"last dotted token wins", "aaa.bbb.ccc ddd.eee.fff", "ddd.eee.fff"},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.want, extractBearerToken(testCase.header))
		})
	}
}

/*
TestBearerGate_ValidToken verifies principal injection on success.
*/
func TestBearerGate_ValidToken(t *testing.T) {
	verifier := &stubVerifier{valid: "aaa.bbb.ccc", claims: validClaims()}

	var captured *sec.Principal
	gate := BearerGate(verifier, GateConfig{})(capturingHandler(&captured))

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer aaa.bbb.ccc")
	recorder := httptest.NewRecorder()

	gate.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, sec.SourceBearer, captured.Source)
}

/*
TestBearerGate_HardMode verifies 401 on missing and invalid tokens.
*/
func TestBearerGate_HardMode(t *testing.T) {
	verifier := &stubVerifier{valid: "aaa.bbb.ccc", claims: validClaims()}

	var captured *sec.Principal
	gate := BearerGate(verifier, GateConfig{})(capturingHandler(&captured))

	// Missing header.
	recorder := httptest.NewRecorder()
	gate.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Tampered token.
	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer xxx.yyy.zzz")
	recorder = httptest.NewRecorder()
	gate.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Nil(t, captured)
}

/*
TestBearerGate_SoftMode verifies anonymous pass-through on bad credentials.
*/
func TestBearerGate_SoftMode(t *testing.T) {
	verifier := &stubVerifier{valid: "aaa.bbb.ccc", claims: validClaims()}

	var captured *sec.Principal
	gate := BearerGate(verifier, GateConfig{Soft: true})(capturingHandler(&captured))

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer xxx.yyy.zzz")
	recorder := httptest.NewRecorder()

	gate.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Nil(t, captured)
}

/*
TestBearerGate_SkipList verifies skip rules bypass the gate entirely.
*/
func TestBearerGate_SkipList(t *testing.T) {
	verifier := &stubVerifier{valid: "aaa.bbb.ccc", claims: validClaims()}

	var captured *sec.Principal
	config := GateConfig{Skip: []SkipRule{{Method: http.MethodGet, PathPrefix: "/health"}}}
	gate := BearerGate(verifier, config)(capturingHandler(&captured))

	// Skipped route: no credential needed.
	recorder := httptest.NewRecorder()
	gate.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)

	// Same path, different method: rule does not match.
	recorder = httptest.NewRecorder()
	gate.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

/*
TestAPIKeyGate verifies lookup, hard failure, and soft pass-through.
*/
func TestAPIKeyGate(t *testing.T) {
	validator := &stubKeyValidator{
		valid:     "secret-key-value",
		principal: &sec.Principal{UserID: "owner-1", Roles: []string{"user"}, Source: sec.SourceAPIKey},
	}

	var captured *sec.Principal
	gate := APIKeyGate(validator, "X-API-Key", GateConfig{})(capturingHandler(&captured))

	// Valid key attaches the owner.
	request := httptest.NewRequest(http.MethodGet, "/service", nil)
	request.Header.Set("X-API-Key", "secret-key-value")
	recorder := httptest.NewRecorder()
	gate.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "owner-1", captured.UserID)
	assert.Equal(t, sec.SourceAPIKey, captured.Source)

	// Wrong key is forbidden.
	request = httptest.NewRequest(http.MethodGet, "/service", nil)
	request.Header.Set("X-API-Key", "wrong")
	recorder = httptest.NewRecorder()
	gate.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// Missing key in hard mode is 401.
	recorder = httptest.NewRecorder()
	gate.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/service", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Missing key in soft mode passes anonymously.
	captured = nil
	softGate := APIKeyGate(validator, "X-API-Key", GateConfig{Soft: true})(capturingHandler(&captured))
	recorder = httptest.NewRecorder()
	softGate.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/service", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Nil(t, captured)
}

/*
TestRequireRole verifies the role ladder on top of the gates.
*/
func TestRequireRole(t *testing.T) {
	protected := RequireRole(sec.RoleAdmin)(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	// Anonymous caller.
	recorder := httptest.NewRecorder()
	protected.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Authenticated but underprivileged.
	request := httptest.NewRequest(http.MethodGet, "/admin", nil)
	request = request.WithContext(ctxutil.WithPrincipal(request.Context(), &sec.Principal{UserID: "u1", Roles: []string{"user"}}))
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// Admin passes.
	request = httptest.NewRequest(http.MethodGet, "/admin", nil)
	request = request.WithContext(ctxutil.WithPrincipal(request.Context(), &sec.Principal{UserID: "u1", Roles: []string{"admin"}}))
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
