// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/constants"
	"github.com/miracleonyenma/keygate/internal/platform/ctxutil"
	"github.com/miracleonyenma/keygate/internal/platform/respond"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
)

// AccessTokenVerifier defines the interface needed to verify bearer tokens.
//
// # Why an interface?
//
// Defining AccessTokenVerifier here decouples the middleware from the codec
// implementation, allowing us to easily inject mocks during unit testing.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*sec.AccessClaims, error)
}

// APIKeyValidator resolves a presented API key secret to a principal.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, secret string) (*sec.Principal, error)
}

// SkipRule names a route the gates pass through without inspection.
type SkipRule struct {
	// Method matches exactly; empty matches every method.
	Method string
	// PathPrefix matches the start of the request path.
	PathPrefix string
}

// matches reports whether the rule covers the request.
func (rule SkipRule) matches(request *http.Request) bool {
	if rule.Method != "" && rule.Method != request.Method {
		return false
	}
	return strings.HasPrefix(request.URL.Path, rule.PathPrefix)
}

// GateConfig tunes the behavior shared by the bearer and API-key gates.
type GateConfig struct {
	// Soft turns a missing or invalid credential into an anonymous pass
	// instead of an immediate 401.
	Soft bool

	// Skip lists routes the gate ignores entirely.
	Skip []SkipRule
}

// skipped reports whether the request matches any skip rule.
func (config GateConfig) skipped(request *http.Request) bool {
	for _, rule := range config.Skip {
		if rule.matches(request) {
			return true
		}
	}
	return false
}

// extractBearerToken pulls a JWT out of an Authorization header value.
//
// # Defensive Parsing
//
// Proxies sometimes merge duplicate Authorization headers with commas or
// repeat the scheme. Commas are treated as whitespace, the value is split
// into tokens, and the last token containing a "." (the JWT shape) wins.
// Scheme words like "Bearer" never contain a dot, so they are skipped
// naturally.
func extractBearerToken(header string) string {
	normalized := strings.ReplaceAll(header, ",", " ")

	token := ""
	for _, part := range strings.Fields(normalized) {
		if strings.Contains(part, ".") {
			token = part
		}
	}

	return token
}

// BearerGate extracts and verifies the JWT from the Authorization header.
//
// # Flow
//  1. Skip-listed routes pass through untouched.
//  2. Extract a JWT-shaped token from 'Authorization' (defensive parsing).
//  3. Verify it via [AccessTokenVerifier].
//  4. Inject the resulting [*sec.Principal] into the request context.
//
// In soft mode a missing or invalid token leaves the request anonymous;
// otherwise it aborts with HTTP 401.
func BearerGate(verifier AccessTokenVerifier, config GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Skip List ──────────────────────────────────────────────────
			if config.skipped(request) {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Extraction ─────────────────────────────────────────────────
			token := extractBearerToken(request.Header.Get(constants.HeaderAuthorization))
			if token == "" {
				if config.Soft {
					next.ServeHTTP(writer, request)
					return
				}
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 3. Verification ───────────────────────────────────────────────
			claims, err := verifier.VerifyAccessToken(token)
			if err != nil {
				if config.Soft {
					next.ServeHTTP(writer, request)
					return
				}
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			principal := sec.PrincipalFromAccessClaims(claims)
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithPrincipal(request.Context(), principal)))
		})
	}
}

// APIKeyGate validates the configured API-key header and attaches the
// owning principal.
//
// # Independence
//
// The key namespace is fully separate from bearer tokens: a valid API key
// never implies a valid JWT and vice versa. Routes may stack both gates.
// A principal already attached by [BearerGate] is left in place when the
// key is absent in soft mode.
func APIKeyGate(validator APIKeyValidator, headerName string, config GateConfig) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = constants.DefaultAPIKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Skip List ──────────────────────────────────────────────────
			if config.skipped(request) {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Extraction ─────────────────────────────────────────────────
			secret := request.Header.Get(headerName)
			if secret == "" {
				if config.Soft {
					next.ServeHTTP(writer, request)
					return
				}
				respond.Error(writer, request, apperr.Unauthorized("API key required"))
				return
			}

			// ── 3. Lookup ─────────────────────────────────────────────────────
			principal, err := validator.ValidateAPIKey(request.Context(), secret)
			if err != nil {
				if config.Soft {
					next.ServeHTTP(writer, request)
					return
				}
				respond.Error(writer, request, apperr.Forbidden("Invalid API key"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithPrincipal(request.Context(), principal)))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [BearerGate] or [APIKeyGate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetPrincipal(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests whose principal lacks the required role level.
//
// # Usage
//
// Must be registered in the router AFTER one of the gates. It automatically
// implies [RequireAuth] so you don't need to mount both.
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !principal.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
