// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/config"
	"github.com/atlashq/profilemap/internal/database"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	cfg       *config.Config
	db        *database.DB
	auditor   *audit.Logger
	sessions  auth.SessionStore
	jwt       *auth.JWTManager
	lockout   *auth.LockoutManager
	hasher    *auth.PasswordHasher
	authMW    *auth.Middleware
	version   string
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(
	cfg *config.Config,
	db *database.DB,
	auditor *audit.Logger,
	sessions auth.SessionStore,
	jwtManager *auth.JWTManager,
	lockout *auth.LockoutManager,
	hasher *auth.PasswordHasher,
	authMW *auth.Middleware,
	version string,
) *Handler {
	return &Handler{
		cfg:       cfg,
		db:        db,
		auditor:   auditor,
		sessions:  sessions,
		jwt:       jwtManager,
		lockout:   lockout,
		hasher:    hasher,
		authMW:    authMW,
		version:   version,
		startTime: time.Now(),
	}
}

// contextWithTimeout derives a bounded context from the request.
func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// scopeFromClaims maps the authenticated identity onto a database scope.
func scopeFromClaims(claims *auth.Claims) database.Scope {
	if claims.IsAdmin() {
		return database.AdminScope()
	}
	return database.OwnerScope(claims.UserID)
}
