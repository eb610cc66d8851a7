// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/database"
	"github.com/atlashq/profilemap/internal/logging"
	"github.com/atlashq/profilemap/internal/models"
)

// ListUsers handles GET /api/v1/users. Staff callers see only their
// own row; the policy layer grants the route to admins, but the scope
// keeps the data honest regardless.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}
	scope := scopeFromClaims(claims)

	p := parsePagination(r, h.cfg.API.DefaultPageSize, h.cfg.API.MaxPageSize)

	users, err := h.db.ListUsers(ctx, scope, p.Limit, p.Offset)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	total, err := h.db.CountUsers(ctx, scope)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if users == nil {
		users = []models.User{}
	}

	rw.Success(map[string]interface{}{
		"users":      users,
		"pagination": p.info(len(users), total),
	})
}

// GetUser handles GET /api/v1/users/{id}. A row outside the caller's
// scope returns 404, identical to a missing row.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}
	scope := scopeFromClaims(claims)

	id := chi.URLParam(r, "id")
	user, err := h.db.GetUserByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("User not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	profile, err := h.db.GetProfileByUserID(ctx, scope, user.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		rw.DatabaseError(err)
		return
	}

	rw.Success(models.UserWithProfile{User: *user, Profile: profile})
}

// CreateUser handles POST /api/v1/users. Admin only via the policy
// layer. Creating a user also creates its empty profile.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}

	var req models.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to hash password")
		rw.InternalError("Failed to process password")
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		Active:       true,
		PasswordHash: hash,
	}

	if err := h.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			rw.Conflict("Username or email already in use")
			return
		}
		rw.DatabaseError(err)
		return
	}

	ip := h.authMW.ClientIP(r)
	source := audit.SourceFromRequest(r, ip)
	actor := audit.ActorFromUser(claims.UserID, claims.Username, claims.Role, claims.SessionID)
	h.auditor.LogUserCreated(ctx, actor, source, user.ID, user.Username, user.Role)

	rw.Created(user)
}

// UpdateUserRequest is the payload for PUT /api/v1/users/{id}.
type UpdateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Active    *bool  `json:"active"`
}

// UpdateUser handles PUT /api/v1/users/{id}. Role and username are
// immutable through this endpoint.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}
	scope := scopeFromClaims(claims)

	id := chi.URLParam(r, "id")

	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}

	user, err := h.db.GetUserByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("User not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	user.Email = req.Email
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	if req.Active != nil {
		// Only admins may toggle account status; a user cannot
		// disable their own login path by accident.
		if claims.IsAdmin() {
			user.Active = *req.Active
		}
	}

	if err := h.db.UpdateUser(ctx, scope, user); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("User not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(user)
}

// DeleteUser handles DELETE /api/v1/users/{id}. Admin only via the
// policy layer. The user's profile and sessions go with the account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}

	id := chi.URLParam(r, "id")
	if id == claims.UserID {
		rw.BadRequest("Cannot delete your own account")
		return
	}

	user, err := h.db.GetUserByID(ctx, database.AdminScope(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("User not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	if err := h.db.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("User not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	if n, err := h.sessions.DeleteByUserID(ctx, id); err != nil {
		logging.Warn().Err(err).Msg("Failed to revoke sessions for deleted user")
	} else if n > 0 {
		logging.Info().Int("count", n).Str("user_id", id).Msg("Revoked sessions for deleted user")
	}

	ip := h.authMW.ClientIP(r)
	source := audit.SourceFromRequest(r, ip)
	actor := audit.ActorFromUser(claims.UserID, claims.Username, claims.Role, claims.SessionID)
	h.auditor.LogUserDeleted(ctx, actor, source, user.ID, user.Username)

	rw.Success(map[string]string{"message": "user deleted", "id": id})
}
