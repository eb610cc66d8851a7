// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/models"
)

// loginAs performs a real login so the audit trail carries the event.
func (e *testEnv) loginAs(t *testing.T, username, password string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, models.LoginRequest{Username: username, Password: password}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.Login(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with %d: %s", w.Code, w.Body.String())
	}

	// Audit writes are asynchronous.
	time.Sleep(100 * time.Millisecond)
}

func TestAuditEvents_ListsLoginEvent(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	env.loginAs(t, "admin", "admin-password-123")

	req := authedRequest(http.MethodGet, "/api/v1/audit/events", nil, claimsFor(admin))
	w := httptest.NewRecorder()
	env.handler.AuditEvents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	data := responseData(t, w)
	events, ok := data["events"].([]interface{})
	if !ok {
		t.Fatalf("events is not a list: %T", data["events"])
	}
	if len(events) == 0 {
		t.Fatal("Expected at least one audit event")
	}

	var foundLogin bool
	for _, raw := range events {
		event, _ := raw.(map[string]interface{})
		if event["type"] == string(audit.EventTypeLogin) {
			foundLogin = true
			if actor, _ := event["actor"].(map[string]interface{}); actor["name"] != "admin" {
				t.Errorf("Expected actor 'admin', got %v", actor["name"])
			}
		}
	}
	if !foundLogin {
		t.Error("Expected a login event in the audit trail")
	}
}

func TestAuditEvents_FilterByType(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	env.loginAs(t, "admin", "admin-password-123")

	// A failed attempt for an unknown username is recorded without an
	// actor ID but with the sanitized attempted name.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, models.LoginRequest{Username: "ghost", Password: "nope-nope-nope"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.handler.Login(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
	time.Sleep(100 * time.Millisecond)

	list := authedRequest(http.MethodGet,
		"/api/v1/audit/events?type="+string(audit.EventTypeLoginFailed), nil, claimsFor(admin))
	w = httptest.NewRecorder()
	env.handler.AuditEvents(w, list)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	data := responseData(t, w)
	events, _ := data["events"].([]interface{})
	if len(events) != 1 {
		t.Fatalf("Expected 1 login_failed event, got %d", len(events))
	}
	event, _ := events[0].(map[string]interface{})
	actor, _ := event["actor"].(map[string]interface{})
	if id, ok := actor["id"]; ok && id != "" {
		t.Errorf("Unknown username must not produce an actor ID, got %v", id)
	}
}

func TestAuditEvents_InvalidTimeFilter(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")

	req := authedRequest(http.MethodGet, "/api/v1/audit/events?start_time=yesterday", nil, claimsFor(admin))
	w := httptest.NewRecorder()
	env.handler.AuditEvents(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
}

func TestAuditEvent_ByID(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	env.loginAs(t, "admin", "admin-password-123")

	events, err := env.auditStore.Query(context.Background(), audit.DefaultQueryFilter())
	if err != nil || len(events) == 0 {
		t.Fatalf("Expected stored audit events, got %d (err %v)", len(events), err)
	}

	req := authedRequest(http.MethodGet, "/api/v1/audit/events/"+events[0].ID, nil, claimsFor(admin))
	req = withURLParam(req, "id", events[0].ID)
	w := httptest.NewRecorder()
	env.handler.AuditEvent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	missing := authedRequest(http.MethodGet, "/api/v1/audit/events/none", nil, claimsFor(admin))
	missing = withURLParam(missing, "id", "no-such-event")
	w2 := httptest.NewRecorder()
	env.handler.AuditEvent(w2, missing)
	if w2.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 for unknown event, got %d", w2.Code)
	}
}

func TestAuditTypes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")

	req := authedRequest(http.MethodGet, "/api/v1/audit/types", nil, claimsFor(admin))
	w := httptest.NewRecorder()
	env.handler.AuditTypes(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	data := responseData(t, w)
	types, _ := data["types"].([]interface{})
	if len(types) != 8 {
		t.Errorf("Expected 8 event types, got %d", len(types))
	}
	severities, _ := data["severities"].([]interface{})
	if len(severities) != 5 {
		t.Errorf("Expected 5 severities, got %d", len(severities))
	}
}

func TestAuditExport(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin, "admin-password-123")
	env.loginAs(t, "admin", "admin-password-123")

	t.Run("JSON", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/api/v1/audit/export?format=json", nil, claimsFor(admin))
		w := httptest.NewRecorder()
		env.handler.AuditExport(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "audit-events.json") {
			t.Errorf("Unexpected Content-Disposition: %s", cd)
		}
		var exported []audit.Event
		if err := json.NewDecoder(w.Body).Decode(&exported); err != nil {
			t.Fatalf("Export is not a JSON event array: %v", err)
		}
		if len(exported) == 0 {
			t.Error("Expected exported events")
		}
	})

	t.Run("CEF", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/api/v1/audit/export?format=cef", nil, claimsFor(admin))
		w := httptest.NewRecorder()
		env.handler.AuditExport(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "CEF:0|AtlasHQ|ProfileMap|") {
			t.Errorf("Expected CEF header in export, got %q", w.Body.String())
		}
	})

	t.Run("Unknown format", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/api/v1/audit/export?format=xml", nil, claimsFor(admin))
		w := httptest.NewRecorder()
		env.handler.AuditExport(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", w.Code)
		}
	})
}
