// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/logging"
	"github.com/atlashq/profilemap/internal/models"
)

// Locations handles GET /api/v1/locations, returning the raw location
// rows visible to the caller's scope.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}

	locations, err := h.db.ListLocations(ctx, scopeFromClaims(claims))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if locations == nil {
		locations = []models.UserLocation{}
	}

	rw.Success(map[string]interface{}{
		"locations": locations,
		"count":     len(locations),
	})
}

// LocationsGeoJSON handles GET /api/v1/locations/geojson, the feed the
// Leaflet map consumes. Responses carry a weak ETag so the map page
// can poll without re-downloading an unchanged dataset.
func (h *Handler) LocationsGeoJSON(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		rw.Unauthorized("Not authenticated")
		return
	}

	locations, err := h.db.ListLocations(ctx, scopeFromClaims(claims))
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	fc := locationsToGeoJSON(locations)

	body, err := json.Marshal(fc)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal GeoJSON")
		rw.InternalError("Failed to serialize locations")
		return
	}

	etag := weakETag(body)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write GeoJSON response")
	}
}
