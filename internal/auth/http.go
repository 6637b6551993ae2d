// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

// # HTTP Delivery Layer
//
// Handlers act as the "gatekeepers" to the system. They are responsible for:
//   - JSON Request parsing and strict input validation.
//   - Mapping HTTP contexts to service layer method calls.
//   - Standardizing JSON response formats via the [respond] package.
//
// They contain NO business logic or database queries.

package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/respond"
	"github.com/miracleonyenma/keygate/internal/platform/validate"
	"github.com/miracleonyenma/keygate/pkg/redirect"
)

// HandlerConfig carries the redirect policy for browser-facing flows.
type HandlerConfig struct {
	// FrontendURL receives successful OAuth sign-ins.
	FrontendURL string

	// FrontendErrorURL receives failed OAuth sign-ins. Falls back to
	// FrontendURL when empty.
	FrontendErrorURL string

	// AllowedRedirectDomains is the parsed host allow-list.
	AllowedRedirectDomains []string

	// IncludeUserData adds id/email/name parameters to success redirects.
	IncludeUserData bool
}

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
	config      HandlerConfig
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, config HandlerConfig) *Handler {
	return &Handler{authService: service, config: config}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /magic-link/request : Sends a single-use sign-in link.
//   - POST /magic-link/verify  : Redeems a link for a token pair (JSON).
//   - GET  /magic-link/verify  : Redeems a clicked link, redirecting to the frontend.
//   - POST /otp/request        : Sends a one-time password.
//   - POST /otp/verify         : Redeems a code, optionally logging in.
//   - POST /token/refresh      : Rotates a token pair.
//   - GET  /google             : Redirects to the provider consent screen.
//   - GET  /google/callback    : Completes the provider round trip.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/magic-link/request", handler.requestMagicLink)
	router.Post("/magic-link/verify", handler.verifyMagicLink)
	router.Get("/magic-link/verify", handler.verifyMagicLinkRedirect)
	router.Post("/otp/request", handler.requestOTP)
	router.Post("/otp/verify", handler.verifyOTP)
	router.Post("/token/refresh", handler.refresh)
	router.Get("/google", handler.initiateOAuth)
	router.Get("/google/callback", handler.oauthCallback)

	return router
}

// emailRequest is the shared payload for the passwordless request endpoints.
type emailRequest struct {
	Email string `json:"email"`
}

// requestMagicLink handles POST /api/v1/auth/magic-link/request.
//
// # Returns
//   - Writes HTTP 200 OK with a uniform message, whether or not the
//     address has an account.
//   - Writes HTTP 400 Bad Request on malformed input or rate limiting.
func (handler *Handler) requestMagicLink(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	message, err := handler.authService.RequestMagicLink(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, message)
}

// verifyMagicLinkRequest carries the raw secret captured from the link.
type verifyMagicLinkRequest struct {
	Token string `json:"token"`
}

// verifyMagicLink handles POST /api/v1/auth/magic-link/verify.
//
// # Returns
//   - Writes HTTP 200 OK with access/refresh tokens and the user profile.
//   - Writes HTTP 401 Unauthorized for unknown, used, or expired tokens.
func (handler *Handler) verifyMagicLink(writer http.ResponseWriter, request *http.Request) {
	var input verifyMagicLinkRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	session, err := handler.authService.VerifyMagicLink(request.Context(), input.Token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// verifyMagicLinkRedirect handles GET /api/v1/auth/magic-link/verify.
//
// This is the browser-facing variant used when the emailed link points at
// the API instead of a frontend page: outcomes are delivered as sanitized
// redirects, never as JSON.
func (handler *Handler) verifyMagicLinkRedirect(writer http.ResponseWriter, request *http.Request) {
	session, err := handler.authService.VerifyMagicLink(request.Context(), request.URL.Query().Get("token"))
	if err != nil {
		handler.redirectWithError(writer, request, "magic_link_failed", err)
		return
	}

	params := redirect.Params{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}
	if handler.config.IncludeUserData {
		params.UserID = session.Account.ID
		params.Email = session.Account.Email
		params.Name = session.Account.FirstName
	}

	target, err := redirect.Build(handler.config.FrontendURL, params, handler.config.AllowedRedirectDomains)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, target, http.StatusTemporaryRedirect)
}

// requestOTP handles POST /api/v1/auth/otp/request.
func (handler *Handler) requestOTP(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	message, err := handler.authService.RequestOTP(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, message)
}

// verifyOTPRequest carries a submitted code and the optional login flag.
type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Login bool   `json:"login"`
}

// verifyOTP handles POST /api/v1/auth/otp/verify.
//
// # Returns
//   - Writes HTTP 200 OK; includes tokens only when login was requested.
//   - Writes HTTP 401 Unauthorized for missing, expired, or wrong codes.
func (handler *Handler) verifyOTP(writer http.ResponseWriter, request *http.Request) {
	var input verifyOTPRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	session, err := handler.authService.VerifyOTP(request.Context(), input.Email, input.Code, input.Login)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// refreshRequest carries the presented refresh token.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refresh handles POST /api/v1/auth/token/refresh.
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError("refresh_token", "is required"))
		return
	}

	session, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// initiateOAuth handles GET /api/v1/auth/google.
//
// Redirects the user-agent to the provider consent screen with a signed
// state parameter.
func (handler *Handler) initiateOAuth(writer http.ResponseWriter, request *http.Request) {
	authorizationURL, err := handler.authService.InitiateOAuth()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, authorizationURL, http.StatusTemporaryRedirect)
}

// oauthCallback handles GET /api/v1/auth/google/callback.
//
// This is a browser-facing endpoint: outcomes are delivered as sanitized
// redirects to the frontend, never as JSON.
func (handler *Handler) oauthCallback(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	session, err := handler.authService.OAuthCallback(
		request.Context(),
		query.Get("code"),
		query.Get("state"),
		query.Get("error"),
	)
	if err != nil {
		handler.redirectWithError(writer, request, "oauth_failed", err)
		return
	}

	params := redirect.Params{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}
	if handler.config.IncludeUserData {
		params.UserID = session.Account.ID
		params.Email = session.Account.Email
		params.Name = session.Account.FirstName
	}

	target, err := redirect.Build(handler.config.FrontendURL, params, handler.config.AllowedRedirectDomains)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, target, http.StatusTemporaryRedirect)
}

// redirectWithError delivers a failure to the frontend error page.
//
// Only the client-safe [apperr.AppError] message ever reaches the URL;
// anything else collapses to the generic internal-error message.
func (handler *Handler) redirectWithError(writer http.ResponseWriter, request *http.Request, code string, err error) {
	appError := apperr.As(err)
	if appError == nil {
		appError = apperr.Internal(err)
	}

	errorURL := handler.config.FrontendErrorURL
	if errorURL == "" {
		errorURL = handler.config.FrontendURL
	}

	target, buildErr := redirect.Build(errorURL, redirect.Params{
		Error:   code,
		Message: appError.Message,
	}, handler.config.AllowedRedirectDomains)
	if buildErr != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, target, http.StatusTemporaryRedirect)
}
