// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package auth

import (
	"context"
	"fmt"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
	"github.com/miracleonyenma/keygate/internal/platform/validate"
	"github.com/miracleonyenma/keygate/pkg/uuid"
)

/*
CreateAPIKey issues a new machine credential owned by the account.

Parameters:
  - context: Context for the database operation.
  - ownerID: The account the key belongs to.
  - label: A human-readable name for the key.

Returns:
  - *APIKey: The created key with its secret populated. This is the only
    time the secret is returned; list operations omit it.
*/
func (service *Service) CreateAPIKey(context context.Context, ownerID, label string) (*APIKey, error) {
	validator := &validate.Validator{}
	if err := validator.Required("owner_id", ownerID).MaxLen("label", label, 100).Err(); err != nil {
		return nil, err
	}

	// The owner must exist; keys are never orphaned at creation.
	if _, err := service.accounts.FindByID(context, ownerID); err != nil {
		return nil, err
	}

	secret, err := sec.RandomSecret(apiKeySecretBytes)
	if err != nil {
		return nil, fmt.Errorf("auth_service_api_key_secret_failed: %w", err)
	}

	key := &APIKey{
		ID:      uuid.New(),
		Secret:  secret,
		OwnerID: ownerID,
		Label:   label,
	}

	if err := service.apiKeys.Create(context, key); err != nil {
		return nil, fmt.Errorf("auth_service_api_key_create_failed: %w", err)
	}

	return key, nil
}

/*
ValidateAPIKey resolves a presented secret to its owning principal.

Parameters:
  - context: Context for the database operation.
  - secret: The presented key value.

Returns:
  - *sec.Principal: The owner's identity with roles attached.
  - Returns [apperr.Unauthorized] for unknown keys or orphaned owners.
*/
func (service *Service) ValidateAPIKey(context context.Context, secret string) (*sec.Principal, error) {
	if secret == "" {
		return nil, apperr.Unauthorized("API key required")
	}

	key, err := service.apiKeys.FindBySecret(context, secret)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.Unauthorized("Invalid API key")
		}
		return nil, fmt.Errorf("auth_service_api_key_lookup_failed: %w", err)
	}

	owner, err := service.accounts.FindByID(context, key.OwnerID)
	if err != nil {
		// A key without an owner means revocation missed a row.
		return nil, apperr.Unauthorized("Invalid API key")
	}

	return &sec.Principal{
		UserID:        owner.ID,
		Email:         owner.Email,
		Roles:         owner.Roles,
		EmailVerified: owner.EmailVerified,
		Source:        sec.SourceAPIKey,
	}, nil
}

/*
ListAPIKeys returns the account's keys, newest first, secrets omitted.
*/
func (service *Service) ListAPIKeys(context context.Context, ownerID string) ([]*APIKey, error) {
	keys, err := service.apiKeys.ListByOwner(context, ownerID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_api_key_list_failed: %w", err)
	}

	// Secrets never leave the creation response.
	for _, key := range keys {
		key.Secret = ""
	}

	return keys, nil
}

/*
RevokeAPIKey permanently deletes a key owned by the account.

Returns:
  - Returns [apperr.NotFound] if the key does not exist or belongs to
    someone else.
*/
func (service *Service) RevokeAPIKey(context context.Context, ownerID, keyID string) error {
	keys, err := service.apiKeys.ListByOwner(context, ownerID)
	if err != nil {
		return fmt.Errorf("auth_service_api_key_revoke_lookup_failed: %w", err)
	}

	for _, key := range keys {
		if key.ID == keyID {
			return service.apiKeys.Delete(context, keyID)
		}
	}

	return apperr.NotFound("API key")
}
