// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv satisfies the fields Load refuses to start without.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/keygate")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "legacy-secret")
}

func TestLoad_RecognizedNames(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_OAUTH_REDIRECT_URI", "https://api.keygate.dev/api/v1/auth/google/callback")
	t.Setenv("MAGIC_LINK_RATE_MAX", "5")
	t.Setenv("FRONTEND_SUCCESS_URL", "https://app.keygate.dev")
	t.Setenv("FRONTEND_ERROR_URL", "https://app.keygate.dev/login")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.keygate.dev/api/v1/auth/google/callback", cfg.GoogleRedirectURI)
	assert.True(t, cfg.GoogleOAuthEnabled())
	assert.Equal(t, 5, cfg.MagicLinkRateMax)
	assert.Equal(t, "https://app.keygate.dev", cfg.FrontendSuccessURL)
	assert.Equal(t, "https://app.keygate.dev/login", cfg.FrontendErrorURL)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, AuthModeREST, cfg.AuthMode)
	assert.Equal(t, 3, cfg.MagicLinkRateMax)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendSuccessURL)
	assert.False(t, cfg.GoogleOAuthEnabled())
	assert.True(t, cfg.RESTAuthEnabled())
}

func TestLoad_AuthModes(t *testing.T) {
	tests := []struct {
		mode        string
		wantErr     bool
		restEnabled bool
	}{
		{mode: "rest", restEnabled: true},
		{mode: "hybrid", restEnabled: true},
		{mode: "graphql", restEnabled: false},
		{mode: "soap", wantErr: true},
		{mode: "disabled", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.mode, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("AUTH_MODE", test.mode)

			cfg, err := Load()
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.restEnabled, cfg.RESTAuthEnabled())
		})
	}
}

func TestLoad_RequiresSigningSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/keygate")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	require.Error(t, err)

	// The dedicated pair is sufficient without the legacy secret.
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
}
