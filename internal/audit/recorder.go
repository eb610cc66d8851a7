// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package audit

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"github.com/atlashq/profilemap/internal/logging"
)

// maxActorNameLen caps the stored length of client-supplied usernames.
const maxActorNameLen = 150

// SourceFromRequest builds a Source from an HTTP request. The client IP
// must be pre-resolved by the middleware layer (trusted-proxy aware);
// this function never trusts X-Forwarded-For on its own.
func SourceFromRequest(r *http.Request, clientIP string) Source {
	src := Source{
		IPAddress: clientIP,
		UserAgent: r.UserAgent(),
	}

	if src.UserAgent != "" {
		ua := useragent.New(src.UserAgent)
		name, _ := ua.Browser()
		src.Browser = name
		src.OS = ua.OSInfo().Name
	}

	return src
}

// ActorFromUser creates an Actor from authenticated user information.
func ActorFromUser(id, name, role, sessionID string) Actor {
	return Actor{
		ID:        id,
		Type:      "user",
		Name:      name,
		Role:      role,
		SessionID: sessionID,
	}
}

// SystemActor returns an Actor representing the application itself.
func SystemActor() Actor {
	return Actor{
		ID:   "system",
		Type: "system",
		Name: "ProfileMap",
	}
}

// sanitizeActorName trims and truncates a client-supplied username so
// hostile input cannot bloat or corrupt the audit trail.
func sanitizeActorName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if len(name) > maxActorNameLen {
		name = name[:maxActorNameLen]
	}
	return name
}

// LogLogin records a successful login.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogLogin(ctx context.Context, actor Actor, source Source, method string) {
	l.Log(&Event{
		Type:        EventTypeLogin,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Source:      source,
		Action:      "login",
		Description: "User logged in",
		Metadata:    mustJSON(map[string]string{"method": method}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogLoginFailed records a failed login attempt. userID is empty when
// the presented username does not match any account; the attempted
// username is kept on the actor name after sanitization.
func (l *Logger) LogLoginFailed(ctx context.Context, userID, username string, source Source, reason string) {
	l.Log(&Event{
		Type:     EventTypeLoginFailed,
		Severity: SeverityWarning,
		Outcome:  OutcomeFailure,
		Actor: Actor{
			ID:   userID,
			Type: "user",
			Name: sanitizeActorName(username),
		},
		Source:      source,
		Action:      "login",
		Description: "Login failed: " + reason,
		Metadata:    mustJSON(map[string]string{"reason": reason}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogLogout records a logout.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogLogout(ctx context.Context, actor Actor, source Source, sessionID string) {
	l.Log(&Event{
		Type:     EventTypeLogout,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Actor:    actor,
		Source:   source,
		Action:   "logout",
		Target: &Target{
			ID:   sessionID,
			Type: "session",
		},
		Description: "User logged out",
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogAuthzDenied records an authorization denial.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogAuthzDenied(ctx context.Context, actor Actor, source Source, resource, action string) {
	l.Log(&Event{
		Type:     EventTypeAuthzDenied,
		Severity: SeverityWarning,
		Outcome:  OutcomeFailure,
		Actor:    actor,
		Source:   source,
		Action:   "authorize",
		Target: &Target{
			ID:   resource,
			Type: "resource",
		},
		Description: "Authorization denied for " + action + " on " + resource,
		Metadata: mustJSON(map[string]string{
			"resource":         resource,
			"requested_action": action,
		}),
		RequestID: logging.RequestIDFromContext(ctx),
	})
}

// LogUserCreated records the creation of a user account.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogUserCreated(ctx context.Context, actor Actor, source Source, userID, username, role string) {
	l.Log(&Event{
		Type:     EventTypeUserCreated,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Actor:    actor,
		Source:   source,
		Action:   "create",
		Target: &Target{
			ID:   userID,
			Type: "user",
			Name: username,
		},
		Description: "User account created",
		Metadata:    mustJSON(map[string]string{"role": role}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogUserDeleted records the deletion of a user account.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogUserDeleted(ctx context.Context, actor Actor, source Source, userID, username string) {
	l.Log(&Event{
		Type:     EventTypeUserDeleted,
		Severity: SeverityWarning,
		Outcome:  OutcomeSuccess,
		Actor:    actor,
		Source:   source,
		Action:   "delete",
		Target: &Target{
			ID:   userID,
			Type: "user",
			Name: username,
		},
		Description: "User account deleted",
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogProfileUpdated records a profile change. changedFields lists the
// fields touched by the request, never their values.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogProfileUpdated(ctx context.Context, actor Actor, source Source, profileID, username string, changedFields []string) {
	l.Log(&Event{
		Type:     EventTypeProfileUpdated,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Actor:    actor,
		Source:   source,
		Action:   "update",
		Target: &Target{
			ID:   profileID,
			Type: "profile",
			Name: username,
		},
		Description: "Profile updated",
		Metadata:    mustJSON(map[string][]string{"fields": changedFields}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogProfileDeleted records a profile deletion.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogProfileDeleted(ctx context.Context, actor Actor, source Source, profileID, username string) {
	l.Log(&Event{
		Type:     EventTypeProfileDeleted,
		Severity: SeverityWarning,
		Outcome:  OutcomeSuccess,
		Actor:    actor,
		Source:   source,
		Action:   "delete",
		Target: &Target{
			ID:   profileID,
			Type: "profile",
			Name: username,
		},
		Description: "Profile deleted",
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}
