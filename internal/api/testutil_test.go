// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/config"
	"github.com/atlashq/profilemap/internal/database"
	"github.com/atlashq/profilemap/internal/models"
)

// testDBSemaphore serializes database creation: concurrent DuckDB CGO
// calls can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        8475,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: config.DatabaseConfig{
			Path:      ":memory:",
			MaxMemory: "1GB",
		},
		API: config.APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: config.SecurityConfig{
			JWTSecret:        "test_secret_with_at_least_32_characters",
			SessionTimeout:   24 * time.Hour,
			RememberMeFor:    720 * time.Hour,
			BcryptCost:       4,
			RateLimitReqs:    100,
			RateLimitWindow:  time.Minute,
			LockoutThreshold: 3,
			LockoutWindow:    15 * time.Minute,
			SessionStore:     "memory",
		},
		Map: config.MapConfig{
			TileURL:     "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: "&copy; OpenStreetMap contributors",
			CenterLat:   20,
			CenterLng:   0,
			DefaultZoom: 2,
			MaxZoom:     19,
		},
		Audit: config.AuditConfig{
			Enabled:       true,
			BufferSize:    100,
			RetentionDays: 90,
		},
	}
}

// testEnv bundles a fully wired handler with its backing stores so
// tests can reach behind the HTTP surface.
type testEnv struct {
	handler    *Handler
	cfg        *config.Config
	db         *database.DB
	auditStore *audit.MemoryStore
	auditor    *audit.Logger
	sessions   auth.SessionStore
	jwt        *auth.JWTManager
	lockout    *auth.LockoutManager
	hasher     *auth.PasswordHasher
	authMW     *auth.Middleware
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := testConfig()

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	auditStore := audit.NewMemoryStore(1000)
	auditor := audit.NewLogger(auditStore, audit.DefaultConfig())
	t.Cleanup(func() {
		if err := auditor.Close(); err != nil {
			t.Errorf("Failed to close audit logger: %v", err)
		}
	})

	sessions := auth.NewMemorySessionStore()
	t.Cleanup(func() { _ = sessions.Close() })

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("Failed to create JWT manager: %v", err)
	}

	lockout := auth.NewLockoutManager(
		auth.NewMemoryLockoutStore(),
		auth.LockoutConfigFromSecurity(&cfg.Security),
	)
	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)
	authMW := auth.NewMiddleware(jwtManager, sessions, nil, 100)

	handler := NewHandler(cfg, db, auditor, sessions, jwtManager, lockout, hasher, authMW, "test")

	return &testEnv{
		handler:    handler,
		cfg:        cfg,
		db:         db,
		auditStore: auditStore,
		auditor:    auditor,
		sessions:   sessions,
		jwt:        jwtManager,
		lockout:    lockout,
		hasher:     hasher,
		authMW:     authMW,
	}
}

func (e *testEnv) createUser(t *testing.T, username, role, password string) *models.User {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		Role:         role,
		Active:       true,
		PasswordHash: hash,
	}
	if err := e.db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) error: %v", username, err)
	}
	return user
}

func claimsFor(user *models.User) *auth.Claims {
	return &auth.Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: "session-" + user.ID,
	}
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()

	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	return bytes.NewReader(body)
}

// authedRequest builds a request carrying validated claims, as the
// Authenticate middleware would have left them.
func authedRequest(method, target string, body io.Reader, claims *auth.Claims) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), auth.ClaimsContextKey, claims))
	}
	return req
}

// withURLParam injects a Chi route parameter for direct handler calls.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()

	var response models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	response := decodeResponse(t, w)
	data, ok := response.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Response data is not a map: %T", response.Data)
	}
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	response := decodeResponse(t, w)
	if response.Error == nil {
		t.Fatal("Expected error in response")
	}
	return response.Error.Code
}
