// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/atlashq/profilemap/internal/authz"
	"github.com/atlashq/profilemap/internal/models"
)

// setupRouter builds the full route tree with authentication and the
// Casbin policy layer wired in, as main does.
func setupRouter(t *testing.T) (http.Handler, *testEnv) {
	t.Helper()

	env := newTestEnv(t)

	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		t.Fatalf("Failed to create enforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	authzMW := authz.NewMiddleware(enforcer, env.auditor, env.authMW.ClientIP)
	router := NewRouter(env.handler, env.authMW, authzMW)
	return router.Setup(), env
}

// loginToken performs a login through the router and returns the JWT.
func loginToken(t *testing.T, srv http.Handler, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(models.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with %d: %s", w.Code, w.Body.String())
	}
	data := responseData(t, w)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("Expected token in login response")
	}
	return token
}

func TestRouter_UnauthenticatedRequestsRejected(t *testing.T) {
	srv, _ := setupRouter(t)

	paths := []string{
		"/api/v1/users",
		"/api/v1/profiles",
		"/api/v1/locations",
		"/api/v1/audit/events",
		"/api/v1/auth/me",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestRouter_BearerTokenAuth(t *testing.T) {
	srv, env := setupRouter(t)
	env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	token := loginToken(t, srv, "admin", "admin-password-123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	data := responseData(t, w)
	if data["username"] != "admin" {
		t.Errorf("Expected username 'admin', got %v", data["username"])
	}
}

func TestRouter_CookieAuth(t *testing.T) {
	srv, env := setupRouter(t)
	env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")

	body, _ := json.Marshal(models.LoginRequest{Username: "admin", Password: "admin-password-123"})
	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(string(body)))
	login.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, login)
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, req)

	if w2.Code != http.StatusOK {
		t.Fatalf("Expected cookie auth to succeed, got %d", w2.Code)
	}
}

func TestRouter_StaffDeniedAdminRoutes(t *testing.T) {
	srv, env := setupRouter(t)
	env.createUser(t, "bjorn", models.RoleStaff, "staff-password-123")
	token := loginToken(t, srv, "bjorn", "staff-password-123")

	denied := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/audit/events"},
		{http.MethodGet, "/api/v1/stats"},
	}
	for _, tt := range denied {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403 for staff, got %d", tt.method, tt.path, w.Code)
		}
	}
}

func TestRouter_StaffAllowedSharedRoutes(t *testing.T) {
	srv, env := setupRouter(t)
	env.createUser(t, "bjorn", models.RoleStaff, "staff-password-123")
	token := loginToken(t, srv, "bjorn", "staff-password-123")

	allowed := []string{
		"/api/v1/auth/me",
		"/api/v1/profiles",
		"/api/v1/profiles/me",
		"/api/v1/locations",
		"/api/v1/locations/geojson",
		"/api/v1/map-config",
	}
	for _, path := range allowed {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200 for staff, got %d", path, w.Code)
		}
	}
}

func TestRouter_AdminInheritsStaffRoutes(t *testing.T) {
	srv, env := setupRouter(t)
	env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	token := loginToken(t, srv, "admin", "admin-password-123")

	for _, path := range []string{"/api/v1/profiles/me", "/api/v1/users", "/api/v1/audit/events"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200 for admin, got %d", path, w.Code)
		}
	}
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	srv, env := setupRouter(t)
	env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	token := loginToken(t, srv, "admin", "admin-password-123")

	logout := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	logout.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, logout)
	if w.Code != http.StatusOK {
		t.Fatalf("Logout failed with %d", w.Code)
	}

	// The JWT signature is still valid, but its backing session is gone.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, req)
	if w2.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", w2.Code)
	}
}

func TestRouter_LogoutIsIdempotent(t *testing.T) {
	srv, env := setupRouter(t)
	env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	token := loginToken(t, srv, "admin", "admin-password-123")

	// A second logout with the same token carries a revoked session
	// but must still return 200 and clear the cookie.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("logout #%d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
		cleared := false
		for _, c := range w.Result().Cookies() {
			if c.Name == "profilemap_token" && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Errorf("logout #%d: expected token cookie to be cleared", i+1)
		}
	}

	// Logout without any token also succeeds, with nothing to audit.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("anonymous logout: expected 200, got %d", w.Code)
	}
}

func TestRouter_HealthUnauthenticated(t *testing.T) {
	srv, _ := setupRouter(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	srv, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "api_active_requests") {
		t.Error("Expected application metrics in scrape output")
	}
}

func TestRouter_FrontendFallback(t *testing.T) {
	srv, _ := setupRouter(t)

	for _, path := range []string{"/", "/some/client/route"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
			continue
		}
		if !strings.Contains(w.Body.String(), "<title>ProfileMap</title>") {
			t.Errorf("GET %s: expected the map page", path)
		}
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	srv, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}
}
