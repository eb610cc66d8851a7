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
	"github.com/atlashq/profilemap/internal/models"
)

// ListProfiles handles GET /api/v1/profiles. Admins see every profile,
// staff callers see exactly their own.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}
	scope := scopeFromClaims(claims)

	p := parsePagination(r, h.cfg.API.DefaultPageSize, h.cfg.API.MaxPageSize)

	profiles, err := h.db.ListProfiles(ctx, scope, p.Limit, p.Offset)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	total, err := h.db.CountProfiles(ctx, scope)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if profiles == nil {
		profiles = []models.Profile{}
	}

	rw.Success(map[string]interface{}{
		"profiles":   profiles,
		"pagination": p.info(len(profiles), total),
	})
}

// GetProfile handles GET /api/v1/profiles/{id}. Another user's profile
// is indistinguishable from a missing one.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}
	scope := scopeFromClaims(claims)

	id := chi.URLParam(r, "id")
	profile, err := h.db.GetProfileByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("Profile not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(profile)
}

// MyProfile handles GET /api/v1/profiles/me.
func (h *Handler) MyProfile(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}

	profile, err := h.db.GetProfileByUserID(ctx, database.OwnerScope(claims.UserID), claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("Profile not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(profile)
}

// UpdateProfile handles PUT /api/v1/profiles/{id}.
// Latitude and longitude come together or not at all: one-sided input
// is rejected, both absent clears the location.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}
	scope := scopeFromClaims(claims)

	id := chi.URLParam(r, "id")

	var req models.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}

	if (req.Latitude == nil) != (req.Longitude == nil) {
		rw.ValidationError("latitude and longitude must be provided together",
			map[string]interface{}{"fields": []string{"latitude", "longitude"}})
		return
	}

	before, err := h.db.GetProfileByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("Profile not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	profile, err := h.db.UpdateProfile(ctx, scope, id, &req)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("Profile not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	ip := h.authMW.ClientIP(r)
	source := audit.SourceFromRequest(r, ip)
	actor := audit.ActorFromUser(claims.UserID, claims.Username, claims.Role, claims.SessionID)
	h.auditor.LogProfileUpdated(ctx, actor, source, profile.ID, profile.Username,
		changedProfileFields(before, &req))

	rw.Success(profile)
}

// DeleteProfile handles DELETE /api/v1/profiles/{id}. Admin only via
// the policy layer.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}

	id := chi.URLParam(r, "id")
	profile, err := h.db.GetProfileByID(ctx, database.AdminScope(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("Profile not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	if err := h.db.DeleteProfile(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("Profile not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	ip := h.authMW.ClientIP(r)
	source := audit.SourceFromRequest(r, ip)
	actor := audit.ActorFromUser(claims.UserID, claims.Username, claims.Role, claims.SessionID)
	h.auditor.LogProfileDeleted(ctx, actor, source, profile.ID, profile.Username)

	rw.Success(map[string]string{"message": "profile deleted", "id": id})
}

// changedProfileFields names the fields touched by the request, never
// their values. The audit trail records what changed, not what to.
func changedProfileFields(before *models.Profile, req *models.UpdateProfileRequest) []string {
	var fields []string

	if before.HomeAddress != req.HomeAddress {
		fields = append(fields, "home_address")
	}
	if before.PhoneNumber != req.PhoneNumber {
		fields = append(fields, "phone_number")
	}
	if coordinateChanged(before.Latitude, req.Latitude) {
		fields = append(fields, "latitude")
	}
	if coordinateChanged(before.Longitude, req.Longitude) {
		fields = append(fields, "longitude")
	}
	return fields
}

func coordinateChanged(before, after *float64) bool {
	if (before == nil) != (after == nil) {
		return true
	}
	return before != nil && *before != *after
}
