// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package authz

import (
	"net/http"

	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/logging"
	"github.com/atlashq/profilemap/internal/metrics"
)

// Middleware provides authorization middleware using Casbin.
type Middleware struct {
	enforcer *Enforcer
	auditor  *audit.Logger
	clientIP func(r *http.Request) string
}

// NewMiddleware creates a new authorization middleware. auditor may be
// nil; denials are then only logged, not audited.
func NewMiddleware(enforcer *Enforcer, auditor *audit.Logger, clientIP func(r *http.Request) string) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		auditor:  auditor,
		clientIP: clientIP,
	}
}

// Require enforces that the authenticated user's role permits the
// action on the object. Denials are audited.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "Forbidden: no authentication context", http.StatusForbidden)
				return
			}

			allowed, err := m.enforcer.Enforce(claims.Role, object, action)
			if err != nil {
				logging.Error().Err(err).Msg("Authorization error")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !allowed {
				metrics.RecordAuthzDenial(object, action)
				m.auditDenial(r, claims, object, action)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireForMethod maps the HTTP method to an action and enforces it
// against the object.
func (m *Middleware) RequireForMethod(object string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.Require(object, methodToAction(r.Method))(next).ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) auditDenial(r *http.Request, claims *auth.Claims, object, action string) {
	if m.auditor == nil {
		return
	}

	ip := ""
	if m.clientIP != nil {
		ip = m.clientIP(r)
	}
	source := audit.SourceFromRequest(r, ip)
	actor := audit.ActorFromUser(claims.UserID, claims.Username, claims.Role, claims.SessionID)
	m.auditor.LogAuthzDenied(r.Context(), actor, source, object, action)
}

// methodToAction maps HTTP methods to Casbin actions.
func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}
