// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/miracleonyenma/keygate/internal/platform/middleware"
	requestutil "github.com/miracleonyenma/keygate/internal/platform/request"
	"github.com/miracleonyenma/keygate/internal/platform/respond"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
	"github.com/miracleonyenma/keygate/internal/platform/validate"
)

// ProtectedRoutes returns the routes that require an authenticated caller.
// The server mounts these behind the bearer gate.
//
// # Endpoints
//   - GET    /me        : Returns the caller's profile.
//   - POST   /keys      : Issues a new API key (admin role required).
//   - GET    /keys      : Lists the caller's API keys, secrets omitted (admin role required).
//   - DELETE /keys/{id} : Revokes one of the caller's API keys (admin role required).
func (handler *Handler) ProtectedRoutes() chi.Router {
	router := chi.NewRouter()

	router.Get("/me", handler.me)

	// Key management is an admin capability, not self-service.
	router.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireRole(sec.RoleAdmin))
		admin.Post("/keys", handler.createAPIKey)
		admin.Get("/keys", handler.listAPIKeys)
		admin.Delete("/keys/{id}", handler.revokeAPIKey)
	})

	return router
}

// me handles GET /api/v1/account/me.
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.authService.accounts.FindByID(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

// createAPIKeyRequest names the key being issued.
type createAPIKeyRequest struct {
	Label string `json:"label"`
}

// createAPIKey handles POST /api/v1/account/keys.
//
// # Returns
//   - Writes HTTP 201 Created with the key, secret included. The secret
//     is never returned again after this response.
func (handler *Handler) createAPIKey(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input createAPIKeyRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	key, err := handler.authService.CreateAPIKey(request.Context(), userID, input.Label)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Inline shape: the secret field is json:"-" on the entity, so the
	// one-time reveal needs an explicit projection.
	respond.Created(writer, map[string]any{
		"id":         key.ID,
		"secret":     key.Secret,
		"label":      key.Label,
		"created_at": key.CreatedAt,
	})
}

// listAPIKeys handles GET /api/v1/account/keys.
func (handler *Handler) listAPIKeys(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	keys, err := handler.authService.ListAPIKeys(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, keys)
}

// revokeAPIKey handles DELETE /api/v1/account/keys/{id}.
func (handler *Handler) revokeAPIKey(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	keyID := requestutil.ID(request, "id")
	if keyID == "" {
		respond.Error(writer, request, validate.RequiredError("id", "is required"))
		return
	}

	if err := handler.authService.RevokeAPIKey(request.Context(), userID, keyID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
