// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miracleonyenma/keygate/internal/platform/middleware"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
)

// newProtectedRouter mounts the account routes the way the server does,
// behind the soft bearer gate and the hard authentication check.
func newProtectedRouter(h *harness) chi.Router {
	handler := NewHandler(h.service, HandlerConfig{FrontendURL: "http://localhost:3000"})

	router := chi.NewRouter()
	router.Use(middleware.BearerGate(h.codec, middleware.GateConfig{Soft: true}))
	router.Use(middleware.RequireAuth)
	router.Mount("/account", handler.ProtectedRoutes())

	return router
}

// bearerFor issues a real access token for the given roles.
func (h *harness) bearerFor(t *testing.T, account *Account, roles []string) string {
	t.Helper()

	token, err := h.codec.IssueAccessToken(sec.AccessTokenData{
		UserID:        account.ID,
		Email:         account.Email,
		Roles:         roles,
		EmailVerified: account.EmailVerified,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAPIKeyRoutes_RequireAdminRole(t *testing.T) {
	h := newHarness(t, Settings{})
	router := newProtectedRouter(h)

	member := h.seedAccount(t, "member@example.com", true)
	memberBearer := h.bearerFor(t, member, []string{RoleUser})

	operator := h.seedAccount(t, "operator@example.com", true)
	operatorBearer := h.bearerFor(t, operator, []string{RoleUser, RoleAdmin})

	do := func(method, target, bearer, body string) *httptest.ResponseRecorder {
		var reader *strings.Reader
		if body == "" {
			reader = strings.NewReader("{}")
		} else {
			reader = strings.NewReader(body)
		}
		request := httptest.NewRequest(method, target, reader)
		if bearer != "" {
			request.Header.Set("Authorization", bearer)
		}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder
	}

	// A plain user can read their own profile but not manage keys.
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/account/me", memberBearer, "").Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/account/keys", memberBearer, `{"label":"ci"}`).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/account/keys", memberBearer, "").Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodDelete, "/account/keys/some-id", memberBearer, "").Code)

	// Unauthenticated callers never reach the role check.
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/account/keys", "", `{"label":"ci"}`).Code)

	// Admins pass.
	created := do(http.MethodPost, "/account/keys", operatorBearer, `{"label":"ci"}`)
	assert.Equal(t, http.StatusCreated, created.Code)
	assert.Contains(t, created.Body.String(), "secret")
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/account/keys", operatorBearer, "").Code)
}

func TestVerifyMagicLinkRedirect_Success(t *testing.T) {
	h := newHarness(t, Settings{})
	handler := NewHandler(h.service, HandlerConfig{FrontendURL: "http://localhost:3000"})
	router := handler.Routes()

	h.seedAccount(t, "dev@example.com", false)
	_, err := h.service.RequestMagicLink(context.Background(), "dev@example.com")
	require.NoError(t, err)
	token := h.capturedLinkToken(t)

	target := "/magic-link/verify?" + url.Values{"token": {token}}.Encode()
	request := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusTemporaryRedirect, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", location.Host)
	assert.NotEmpty(t, location.Query().Get("accessToken"))
	assert.NotEmpty(t, location.Query().Get("refreshToken"))
}

// Storage failures during verification must redirect with the generic
// internal-error message, never the raw error text.
func TestVerifyMagicLinkRedirect_InternalErrorIsSanitized(t *testing.T) {
	h := newHarness(t, Settings{})
	handler := NewHandler(h.service, HandlerConfig{FrontendURL: "http://localhost:3000"})
	router := handler.Routes()

	h.magicLinks.failFind = errors.New("pg: connection refused while running SELECT")

	request := httptest.NewRequest(http.MethodGet, "/magic-link/verify?token=abc123", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusTemporaryRedirect, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "magic_link_failed", location.Query().Get("error"))
	assert.Equal(t, "An unexpected error occurred", location.Query().Get("message"))
	assert.NotContains(t, recorder.Header().Get("Location"), "connection refused")
}

// Client-facing failures keep their own message on the redirect.
func TestVerifyMagicLinkRedirect_UnknownToken(t *testing.T) {
	h := newHarness(t, Settings{})
	handler := NewHandler(h.service, HandlerConfig{FrontendURL: "http://localhost:3000"})
	router := handler.Routes()

	request := httptest.NewRequest(http.MethodGet, "/magic-link/verify?token=not-a-real-token", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusTemporaryRedirect, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "magic_link_failed", location.Query().Get("error"))
	assert.NotEmpty(t, location.Query().Get("message"))
	assert.NotContains(t, location.Query().Get("message"), "unexpected")
}
