// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/atlashq/profilemap/internal/api"
	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/authz"
	"github.com/atlashq/profilemap/internal/config"
	"github.com/atlashq/profilemap/internal/database"
	"github.com/atlashq/profilemap/internal/logging"
	"github.com/atlashq/profilemap/internal/metrics"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting ProfileMap")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().
		Str("path", cfg.Database.Path).
		Bool("spatial", db.IsSpatialAvailable()).
		Msg("Database initialized")

	// Context canceled on shutdown; background routines hang off it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)

	if err := bootstrapAdmin(ctx, db, hasher, &cfg.Security); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap admin account")
	}

	// Audit trail shares the DuckDB handle with the main schema.
	auditStore := audit.NewDuckDBStore(db.Conn())
	if err := auditStore.CreateTable(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create audit events table")
	}
	auditConfig := audit.DefaultConfig()
	auditConfig.Enabled = cfg.Audit.Enabled
	if cfg.Audit.BufferSize > 0 {
		auditConfig.BufferSize = cfg.Audit.BufferSize
	}
	if cfg.Audit.RetentionDays > 0 {
		auditConfig.RetentionDays = cfg.Audit.RetentionDays
	}
	auditor := audit.NewLogger(auditStore, auditConfig)
	defer func() {
		if err := auditor.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()
	auditor.StartCleanupRoutine(ctx)
	logging.Info().
		Bool("enabled", cfg.Audit.Enabled).
		Int("retention_days", auditConfig.RetentionDays).
		Msg("Audit logging initialized")

	sessions, err := auth.NewSessionStore(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session store")
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()
	auth.StartSessionCleanup(ctx, sessions, 5*time.Minute)

	if cfg.Security.SessionStore == "memory" && cfg.Server.Environment != "development" {
		logging.Warn().Msg("Session store is 'memory'; sessions will not survive a restart. Set SESSION_STORE=badger for persistence")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	lockout := auth.NewLockoutManager(
		auth.NewMemoryLockoutStore(),
		auth.LockoutConfigFromSecurity(&cfg.Security),
	)
	lockout.StartCleanupRoutine(ctx)

	authMW := auth.NewMiddleware(jwtManager, sessions, cfg.Security.TrustedProxies, cfg.Security.LockoutThreshold)

	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}
	defer enforcer.Close()
	authzMW := authz.NewMiddleware(enforcer, auditor, authMW.ClientIP)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED; use only for local testing")
	}

	handler := api.NewHandler(cfg, db, auditor, sessions, jwtManager, lockout, hasher, authMW, version)
	router := api.NewRouter(handler, authMW, authzMW)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Stop background routines before the deferred closes run.
	cancel()

	logging.Info().Msg("Application stopped gracefully")
}
