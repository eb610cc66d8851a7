// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/atlashq/profilemap/internal/models"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	env.handler.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	// Health is unenveloped for load balancer compatibility.
	var status HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("Expected status ok, got %s", status.Status)
	}
	if status.Version != "test" {
		t.Errorf("Expected version 'test', got %s", status.Version)
	}
	if status.Database != "ok" {
		t.Errorf("Expected database ok, got %s", status.Database)
	}
}

func TestHealthLiveAndReady(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.handler.HealthLive(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("live: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	env.handler.HealthReady(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("ready: expected 200, got %d", w.Code)
	}
}

func TestMapConfig(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "bjorn", models.RoleStaff, "staff-password-123")

	req := authedRequest(http.MethodGet, "/api/v1/map-config", nil, claimsFor(staff))
	w := httptest.NewRecorder()
	env.handler.MapConfig(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	data := responseData(t, w)
	if data["tile_url"] != env.cfg.Map.TileURL {
		t.Errorf("Expected tile_url %q, got %v", env.cfg.Map.TileURL, data["tile_url"])
	}
	if data["default_zoom"] != float64(env.cfg.Map.DefaultZoom) {
		t.Errorf("Expected default_zoom %d, got %v", env.cfg.Map.DefaultZoom, data["default_zoom"])
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	staff := env.createUser(t, "bjorn", models.RoleStaff, "staff-password-123")
	env.createUser(t, "clara", models.RoleStaff, "staff-password-123")
	env.placeUser(t, staff.ID, 59.9139, 10.7522)

	req := authedRequest(http.MethodGet, "/api/v1/stats", nil, claimsFor(admin))
	w := httptest.NewRecorder()
	env.handler.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	data := responseData(t, w)
	if data["total_users"] != float64(3) {
		t.Errorf("Expected 3 users, got %v", data["total_users"])
	}
	if data["located_profiles"] != float64(1) {
		t.Errorf("Expected 1 located profile, got %v", data["located_profiles"])
	}
}
