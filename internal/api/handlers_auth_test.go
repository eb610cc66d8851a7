// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/database"
	"github.com/atlashq/profilemap/internal/models"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "astrid", models.RoleAdmin, "correct-horse-battery")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, models.LoginRequest{Username: "astrid", Password: "correct-horse-battery"}))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.handler.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	data := responseData(t, w)
	if data["token"] == nil || data["token"] == "" {
		t.Error("Expected token in response")
	}
	if data["username"] != "astrid" {
		t.Errorf("Expected username 'astrid', got %v", data["username"])
	}
	if data["role"] != models.RoleAdmin {
		t.Errorf("Expected role 'admin', got %v", data["role"])
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.TokenCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected token cookie in response")
	}
	if !cookie.HttpOnly {
		t.Error("Expected cookie to be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Error("Expected cookie SameSite to be Lax")
	}

	// The token must validate against a live session.
	token, _ := data["token"].(string)
	claims, err := env.jwt.ValidateToken(token)
	if err != nil {
		t.Fatalf("Issued token failed validation: %v", err)
	}
	if _, err := env.sessions.Get(context.Background(), claims.SessionID); err != nil {
		t.Errorf("Expected backing session for issued token: %v", err)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "astrid", models.RoleStaff, "correct-horse-battery")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"Wrong password", "astrid", "wrong-password"},
		{"Unknown username", "nosuchuser", "correct-horse-battery"},
		{"Both wrong", "nosuchuser", "wrong-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
				jsonBody(t, models.LoginRequest{Username: tt.username, Password: tt.password}))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			env.handler.Login(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("Expected status 401, got %d", w.Code)
			}

			// Unknown usernames and wrong passwords must be
			// indistinguishable to the caller.
			response := decodeResponse(t, w)
			if response.Error == nil {
				t.Fatal("Expected error in response")
			}
			if response.Error.Message != "Invalid username or password" {
				t.Errorf("Unexpected error message: %q", response.Error.Message)
			}
		})
	}
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "astrid", models.RoleStaff, "correct-horse-battery")

	attempt := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			jsonBody(t, models.LoginRequest{Username: "astrid", Password: "wrong-password"}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.handler.Login(w, req)
		return w
	}

	for i := 0; i < env.cfg.Security.LockoutThreshold; i++ {
		if w := attempt(); w.Code != http.StatusUnauthorized {
			t.Fatalf("Attempt %d: expected status 401, got %d", i+1, w.Code)
		}
	}

	w := attempt()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429 after lockout, got %d", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeAccountLocked {
		t.Errorf("Expected error code %s, got %s", ErrCodeAccountLocked, code)
	}

	// The right password does not bypass an active lockout.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, models.LoginRequest{Username: "astrid", Password: "correct-horse-battery"}))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	env.handler.Login(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 during lockout, got %d", w.Code)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "astrid", models.RoleStaff, "correct-horse-battery")

	user.Active = false
	if err := env.db.UpdateUser(context.Background(), database.AdminScope(), user); err != nil {
		t.Fatalf("Failed to disable user: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, models.LoginRequest{Username: "astrid", Password: "correct-horse-battery"}))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.handler.Login(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeAccountDisabled {
		t.Errorf("Expected error code %s, got %s", ErrCodeAccountDisabled, code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, models.LoginRequest{Username: "astrid"}))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.handler.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "astrid", models.RoleStaff, "correct-horse-battery")
	ctx := context.Background()

	session := auth.NewSession(user.ID, user.Username, user.Role, false, env.cfg.Security.SessionTimeout)
	if err := env.sessions.Create(ctx, session); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	claims := claimsFor(user)
	claims.SessionID = session.ID

	req := authedRequest(http.MethodPost, "/api/v1/auth/logout", nil, claims)
	w := httptest.NewRecorder()
	env.handler.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	if _, err := env.sessions.Get(ctx, session.ID); err == nil {
		t.Error("Expected session to be deleted after logout")
	}

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.TokenCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("Expected token cookie to be cleared")
	}
}

func TestMe_ReturnsOwnAccountWithProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "astrid", models.RoleStaff, "correct-horse-battery")

	req := authedRequest(http.MethodGet, "/api/v1/auth/me", nil, claimsFor(user))
	w := httptest.NewRecorder()
	env.handler.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	data := responseData(t, w)
	if data["username"] != "astrid" {
		t.Errorf("Expected username 'astrid', got %v", data["username"])
	}
	if data["profile"] == nil {
		t.Error("Expected embedded profile in response")
	}
}
