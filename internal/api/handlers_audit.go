// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlashq/profilemap/internal/audit"
	"github.com/atlashq/profilemap/internal/logging"
)

// AuditEvents handles GET /api/v1/audit/events. Admin only via the
// policy layer. Supports filtering by type, severity, outcome, actor,
// source IP, time range, and free-text search.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	filter, err := auditFilterFromQuery(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	events, err := h.auditor.Query(ctx, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	total, err := h.auditor.Count(ctx, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if events == nil {
		events = []audit.Event{}
	}

	rw.Success(map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// AuditEvent handles GET /api/v1/audit/events/{id}.
func (h *Handler) AuditEvent(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	id := chi.URLParam(r, "id")
	event, err := h.auditor.Get(r.Context(), id)
	if err != nil {
		rw.NotFound("Audit event not found")
		return
	}

	rw.Success(event)
}

// AuditStats handles GET /api/v1/audit/stats.
func (h *Handler) AuditStats(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	stats, err := h.auditor.GetStats(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(stats)
}

// AuditTypes handles GET /api/v1/audit/types, listing the known event
// types and severities so the UI can build filter dropdowns.
func (h *Handler) AuditTypes(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	rw.Success(map[string]interface{}{
		"types": []audit.EventType{
			audit.EventTypeLogin,
			audit.EventTypeLoginFailed,
			audit.EventTypeLogout,
			audit.EventTypeAuthzDenied,
			audit.EventTypeUserCreated,
			audit.EventTypeUserDeleted,
			audit.EventTypeProfileUpdated,
			audit.EventTypeProfileDeleted,
		},
		"severities": []audit.Severity{
			audit.SeverityDebug,
			audit.SeverityInfo,
			audit.SeverityWarning,
			audit.SeverityError,
			audit.SeverityCritical,
		},
	})
}

// AuditExport handles GET /api/v1/audit/export?format=json|cef.
// Exports are bounded by the same filter parameters as the list view.
func (h *Handler) AuditExport(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	ctx := r.Context()

	filter, err := auditFilterFromQuery(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if filter.Limit <= 0 || filter.Limit > 10000 {
		filter.Limit = 10000
	}

	events, err := h.auditor.Query(ctx, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	format := r.URL.Query().Get("format")
	var (
		body        []byte
		contentType string
		filename    string
	)

	switch format {
	case "", "json":
		exporter := &audit.JSONExporter{}
		body, err = exporter.Export(events)
		contentType = "application/json; charset=utf-8"
		filename = "audit-events.json"
	case "cef":
		exporter := audit.NewCEFExporter()
		body, err = exporter.Export(events)
		contentType = "text/plain; charset=utf-8"
		filename = "audit-events.cef"
	default:
		rw.BadRequest("format must be json or cef")
		return
	}
	if err != nil {
		logging.Error().Err(err).Msg("Audit export failed")
		rw.InternalError("Export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write export response")
	}
}

// auditFilterFromQuery builds a QueryFilter from list/export query
// parameters. Times are RFC 3339.
func auditFilterFromQuery(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()

	for _, t := range q["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	for _, s := range q["severity"] {
		filter.Severities = append(filter.Severities, audit.Severity(s))
	}
	for _, o := range q["outcome"] {
		filter.Outcomes = append(filter.Outcomes, audit.Outcome(o))
	}

	filter.ActorID = q.Get("actor_id")
	filter.ActorName = q.Get("actor_name")
	filter.TargetID = q.Get("target_id")
	filter.SourceIP = q.Get("source_ip")
	filter.RequestID = q.Get("request_id")
	filter.SearchText = q.Get("search")

	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidTime("start_time")
		}
		filter.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidTime("end_time")
		}
		filter.EndTime = &t
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	return filter, nil
}

type timeParseError string

func (e timeParseError) Error() string {
	return string(e) + " must be RFC 3339"
}

func errInvalidTime(field string) error {
	return timeParseError(field)
}
