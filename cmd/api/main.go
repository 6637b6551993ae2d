// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

// Command api is the entry point for the Keygate HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the token codec and the auth service.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/miracleonyenma/keygate/internal/api"
	"github.com/miracleonyenma/keygate/internal/auth"
	"github.com/miracleonyenma/keygate/internal/platform/config"
	"github.com/miracleonyenma/keygate/internal/platform/constants"
	"github.com/miracleonyenma/keygate/internal/platform/mail"
	"github.com/miracleonyenma/keygate/internal/platform/migration"
	pgstore "github.com/miracleonyenma/keygate/internal/platform/postgres"
	"github.com/miracleonyenma/keygate/internal/platform/ratelimit"
	redisstore "github.com/miracleonyenma/keygate/internal/platform/redis"
	"github.com/miracleonyenma/keygate/internal/platform/sec"
	"github.com/miracleonyenma/keygate/pkg/redirect"
)

// magicLinkCleanupInterval paces the expired-token reclamation loop.
const magicLinkCleanupInterval = time.Hour

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "keygate"))
	slog.SetDefault(log)

	log.Info("[Keygate] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "keygate"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("auth_mode", cfg.AuthMode),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Codec ────────────────────────────────────────────────────
	// Fails fast when neither the secret pair nor the legacy single secret
	// is configured.
	codec, err := sec.NewCodec(sec.CodecConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		LegacySecret:  cfg.JWTSecret,
		Issuer:        constants.AuthIssuer,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	must(log, err, "initialize token codec")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	var oauthProvider *auth.GoogleProvider
	if cfg.GoogleOAuthEnabled() {
		oauthProvider = auth.NewGoogleProvider(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURI,
			[]byte(derivedSecret(cfg)),
		)
		log.Info("google_oauth_enabled")
	} else {
		log.Info("google_oauth_disabled")
	}

	magicLinkBaseURL := cfg.FrontendMagicLinkURL
	if magicLinkBaseURL == "" {
		magicLinkBaseURL = strings.TrimSuffix(cfg.FrontendSuccessURL, "/") + "/auth/verify"
	}

	authService := auth.NewService(
		auth.NewAccountRepository(pool),
		auth.NewRoleRepository(pool),
		auth.NewMagicLinkTokenRepository(pool),
		auth.NewOTPRepository(rdb),
		auth.NewAPIKeyRepository(pool),
		codec,
		ratelimit.NewRedisLimiter(rdb),
		mail.NewLogDispatcher(log),
		oauthProvider,
		auth.Settings{
			AppName:          cfg.MailFromName,
			MagicLinkBaseURL: magicLinkBaseURL,
			Sender: mail.Sender{
				Address: cfg.MailFromAddress,
				Name:    cfg.MailFromName,
			},
			LookupSecret:        []byte(derivedSecret(cfg)),
			MagicLinkTTL:        cfg.MagicLinkTTL,
			MagicLinkRateLimit:  cfg.MagicLinkRateMax,
			MagicLinkRateWindow: cfg.MagicLinkRateWindow,
			OTPTTL:              cfg.OTPTTL,
			OTPResendCooldown:   cfg.OTPResendCooldown,
			OTPMaxAttempts:      cfg.OTPMaxAttempts,
		},
	)

	authHandler := auth.NewHandler(authService, auth.HandlerConfig{
		FrontendURL:            cfg.FrontendSuccessURL,
		FrontendErrorURL:       cfg.FrontendErrorURL,
		AllowedRedirectDomains: redirect.ParseAllowedDomains(cfg.AllowedRedirectDomains),
		IncludeUserData:        cfg.IncludeUserDataInRedirect,
	})

	// ── 9. Background Maintenance ─────────────────────────────────────────
	maintenanceCtx, maintenanceCancel := context.WithCancel(context.Background())
	defer maintenanceCancel()
	go cleanupLoop(maintenanceCtx, authService, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
	}

	server := api.NewServer(maintenanceCtx, cfg, log, codec, authService, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// cleanupLoop periodically reclaims expired magic-link tokens.
func cleanupLoop(ctx context.Context, service *auth.Service, log *slog.Logger) {
	ticker := time.NewTicker(magicLinkCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := service.CleanupExpiredMagicLinks(ctx)
			if err != nil {
				log.Error("magic_link_cleanup_failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				log.Info("magic_link_cleanup_done", slog.Int64("removed", removed))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}

// derivedSecret picks the server secret used for HMAC derivations (lookup
// keys, OAuth state). Prefers the refresh secret, falls back to the legacy
// single secret.
func derivedSecret(cfg *config.Config) string {
	if cfg.RefreshTokenSecret != "" {
		return cfg.RefreshTokenSecret
	}
	return cfg.JWTSecret
}
