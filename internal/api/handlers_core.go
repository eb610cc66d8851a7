// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/atlashq/profilemap/internal/metrics"
)

// HealthStatus is the payload for the health endpoints.
type HealthStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	UptimeSec int64  `json:"uptime_seconds"`
	Database  string `json:"database"`
	Spatial   bool   `json:"spatial_extension"`
}

// Health handles GET /api/v1/health. Unauthenticated: load balancers
// and uptime monitors hit this.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	status := HealthStatus{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
		Database:  "ok",
		Spatial:   h.db.IsSpatialAvailable(),
	}

	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Database = "unreachable"
		rw.writeJSON(http.StatusServiceUnavailable, status)
		return
	}

	metrics.AppUptime.Set(float64(status.UptimeSec))
	rw.writeJSON(http.StatusOK, status)
}

// HealthLive handles GET /api/v1/health/live: process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// HealthReady handles GET /api/v1/health/ready: dependencies reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := h.db.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// Stats handles GET /api/v1/stats. Admin only via the policy layer.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	stats, err := h.db.GetProfileStats(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	metrics.ProfilesWithLocation.Set(float64(stats.LocatedProfiles))

	rw.Success(stats)
}

// MapConfigResponse is the client-side configuration for the Leaflet
// map page: tile source, initial view, and clustering.
type MapConfigResponse struct {
	TileURL       string  `json:"tile_url"`
	Attribution   string  `json:"attribution"`
	CenterLat     float64 `json:"center_lat"`
	CenterLng     float64 `json:"center_lng"`
	DefaultZoom   int     `json:"default_zoom"`
	MaxZoom       int     `json:"max_zoom"`
	ClusterPoints bool    `json:"cluster_points"`
}

// MapConfig handles GET /api/v1/map-config.
func (h *Handler) MapConfig(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	rw.Success(MapConfigResponse{
		TileURL:       h.cfg.Map.TileURL,
		Attribution:   h.cfg.Map.Attribution,
		CenterLat:     h.cfg.Map.CenterLat,
		CenterLng:     h.cfg.Map.CenterLng,
		DefaultZoom:   h.cfg.Map.DefaultZoom,
		MaxZoom:       h.cfg.Map.MaxZoom,
		ClusterPoints: h.cfg.Map.ClusterPoints,
	})
}
