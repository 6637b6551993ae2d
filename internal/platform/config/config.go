// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Recognized AuthMode values.
const (
	AuthModeGraphQL = "graphql"
	AuthModeREST    = "rest"
	AuthModeHybrid  = "hybrid"
)

// Config holds all runtime configuration for the Keygate API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// AuthMode selects which authentication surface the server exposes.
	// "rest" and "hybrid" serve the JSON auth endpoints; "graphql" mounts
	// none of them while keeping token verification middleware active.
	AuthMode string `env:"AUTH_MODE" envDefault:"rest"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing secrets. AccessTokenSecret and RefreshTokenSecret are
	// the preferred pair; JWTSecret is the legacy single-secret mode used
	// when the pair is absent.
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	JWTSecret          string        `env:"JWT_SECRET"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Magic link settings
	MagicLinkTTL        time.Duration `env:"MAGIC_LINK_TTL"         envDefault:"15m"`
	MagicLinkRateMax    int           `env:"MAGIC_LINK_RATE_MAX"    envDefault:"3"`
	MagicLinkRateWindow time.Duration `env:"MAGIC_LINK_RATE_WINDOW" envDefault:"15m"`

	// One-time password settings
	OTPTTL            time.Duration `env:"OTP_TTL"             envDefault:"10m"`
	OTPResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"60s"`
	OTPMaxAttempts    int           `env:"OTP_MAX_ATTEMPTS"    envDefault:"0"`

	// OAuth (Google) settings
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"GOOGLE_OAUTH_REDIRECT_URI"`

	// Application URLs used when building emails and browser redirects.
	AppURL               string `env:"APP_URL"              envDefault:"http://localhost:8080"`
	FrontendSuccessURL   string `env:"FRONTEND_SUCCESS_URL" envDefault:"http://localhost:3000"`
	FrontendErrorURL     string `env:"FRONTEND_ERROR_URL"`
	FrontendMagicLinkURL string `env:"FRONTEND_MAGIC_LINK_URL"`

	// IncludeUserDataInRedirect controls whether OAuth success redirects
	// carry the user id, email and name as query parameters.
	IncludeUserDataInRedirect bool `env:"INCLUDE_USER_DATA_IN_REDIRECT" envDefault:"false"`

	// AllowedRedirectDomains is a comma-separated host allow-list for
	// post-auth redirects. Entries may use a "*." prefix for subdomain
	// wildcards. Empty accepts any http(s) host.
	AllowedRedirectDomains string `env:"ALLOWED_REDIRECT_DOMAINS"`

	// API key gate settings
	APIKeyHeader string `env:"API_KEY_HEADER" envDefault:"X-API-Key"`

	// Mail dispatch settings
	MailFromAddress string `env:"MAIL_FROM_ADDRESS" envDefault:"no-reply@keygate.dev"`
	MailFromName    string `env:"MAIL_FROM_NAME"    envDefault:"Keygate"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects configurations the server cannot safely start with.
func (c *Config) validate() error {
	switch c.AuthMode {
	case AuthModeGraphQL, AuthModeREST, AuthModeHybrid:
	default:
		return fmt.Errorf("config: unknown AUTH_MODE %q", c.AuthMode)
	}

	hasTokenPair := c.AccessTokenSecret != "" && c.RefreshTokenSecret != ""
	if !hasTokenPair && c.JWTSecret == "" {
		return fmt.Errorf("config: set ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET, or JWT_SECRET for legacy single-secret mode")
	}

	return nil
}

// RESTAuthEnabled reports whether the JSON auth endpoints should be mounted.
func (c *Config) RESTAuthEnabled() bool {
	return c.AuthMode == AuthModeREST || c.AuthMode == AuthModeHybrid
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GoogleOAuthEnabled reports whether Google sign-in is fully configured.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}
