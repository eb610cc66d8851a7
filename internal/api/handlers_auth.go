// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/database"
	"github.com/atlashq/profilemap/internal/logging"
	"github.com/atlashq/profilemap/internal/metrics"
	"github.com/atlashq/profilemap/internal/models"
)

// Login handles POST /api/v1/auth/login.
// Failed attempts count toward the per-username and per-IP lockout.
// Unknown usernames and wrong passwords produce identical responses.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		rw.BadRequest("username and password are required")
		return
	}

	ip := h.authMW.ClientIP(r)
	source := audit.SourceFromRequest(r, ip)

	locked, remaining, err := h.lockout.CheckLocked(ctx, req.Username)
	if err != nil {
		logging.Error().Err(err).Msg("Lockout check failed")
	}
	if !locked {
		ipLocked, ipRemaining, ipErr := h.lockout.CheckLocked(ctx, "ip:"+ip)
		if ipErr != nil {
			logging.Error().Err(ipErr).Msg("Lockout check failed")
		}
		if ipLocked {
			locked, remaining = true, ipRemaining
		}
	}
	if locked {
		metrics.RecordLoginAttempt("locked_out")
		h.auditor.LogLoginFailed(ctx, "", req.Username, source, "account locked")
		rw.ErrorWithDetails(http.StatusTooManyRequests, ErrCodeAccountLocked,
			"Too many failed login attempts, try again later",
			map[string]interface{}{"retry_after_seconds": int(remaining.Seconds()) + 1})
		return
	}

	user, err := h.db.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.failLogin(w, rw, r, "", req.Username, ip, source, "unknown username")
			return
		}
		rw.DatabaseError(err)
		return
	}

	if err := h.hasher.Verify(user.PasswordHash, req.Password); err != nil {
		h.failLogin(w, rw, r, user.ID, user.Username, ip, source, "invalid password")
		return
	}

	if !user.Active {
		metrics.RecordLoginAttempt("failure")
		h.auditor.LogLoginFailed(ctx, user.ID, user.Username, source, "account disabled")
		rw.Error(http.StatusForbidden, ErrCodeAccountDisabled, "Account is disabled")
		return
	}

	duration := h.cfg.Security.SessionTimeout
	if req.RememberMe {
		duration = h.cfg.Security.RememberMeFor
	}

	session := auth.NewSession(user.ID, user.Username, user.Role, req.RememberMe, duration)
	if err := h.sessions.Create(ctx, session); err != nil {
		logging.Error().Err(err).Msg("Failed to create session")
		rw.InternalError("Failed to create session")
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(user.ID, user.Username, user.Role, session.ID, req.RememberMe)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to generate token")
		rw.InternalError("Failed to generate token")
		return
	}

	if err := h.lockout.RecordSuccessfulLogin(ctx, user.Username); err != nil {
		logging.Warn().Err(err).Msg("Failed to clear lockout state")
	}

	metrics.RecordLoginAttempt("success")
	actor := audit.ActorFromUser(user.ID, user.Username, user.Role, session.ID)
	h.auditor.LogLogin(ctx, actor, source, "password")

	h.setTokenCookie(w, token, expiresAt)

	rw.Success(models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  user.Username,
		Role:      user.Role,
		UserID:    user.ID,
	})
}

// failLogin records a failed attempt and writes the uniform 401. The
// response never reveals whether the username exists.
func (h *Handler) failLogin(w http.ResponseWriter, rw *responseWriter, r *http.Request, userID, username, ip string, source audit.Source, reason string) {
	ctx := r.Context()

	metrics.RecordLoginAttempt("failure")
	h.auditor.LogLoginFailed(ctx, userID, username, source, reason)

	nowLocked, _, err := h.lockout.RecordFailedAttempt(ctx, username, ip)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to record login attempt")
	}
	if nowLocked {
		logging.Warn().
			Str("username", sanitizeLogValue(username)).
			Str("ip", ip).
			Msg("Login subject locked out")
	}

	rw.Error(http.StatusUnauthorized, ErrCodeAuthentication, "Invalid username or password")
}

// Logout handles POST /api/v1/auth/logout. Deleting the backing session
// revokes the JWT even though its signature stays valid until expiry.
// Logout is idempotent: an expired or already-revoked session still
// gets a 200 and a cleared cookie, and the event is audited only when
// a user was resolved from the token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		h.clearTokenCookie(w)
		rw.Success(map[string]string{"message": "logged out"})
		return
	}

	if claims.SessionID != "" {
		if err := h.sessions.Delete(ctx, claims.SessionID); err != nil &&
			!errors.Is(err, auth.ErrSessionNotFound) {
			logging.Error().Err(err).Msg("Failed to delete session")
		}
	}

	ip := h.authMW.ClientIP(r)
	source := audit.SourceFromRequest(r, ip)
	actor := audit.ActorFromUser(claims.UserID, claims.Username, claims.Role, claims.SessionID)
	h.auditor.LogLogout(ctx, actor, source, claims.SessionID)

	h.clearTokenCookie(w)

	rw.Success(map[string]string{"message": "logged out"})
}

// Me handles GET /api/v1/auth/me, returning the authenticated user's
// account with its profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}

	scope := database.OwnerScope(claims.UserID)
	user, err := h.db.GetUserByID(ctx, scope, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.Unauthorized("Account no longer exists")
			return
		}
		rw.DatabaseError(err)
		return
	}

	profile, err := h.db.GetProfileByUserID(ctx, scope, claims.UserID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		rw.DatabaseError(err)
		return
	}

	rw.Success(models.UserWithProfile{User: *user, Profile: profile})
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cfg.Security.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Security.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
