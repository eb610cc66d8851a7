// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package query

import (
	"testing"
	"time"
)

func TestWhereBuilder_Empty(t *testing.T) {
	wb := NewWhereBuilder()

	if !wb.IsEmpty() {
		t.Error("Expected new builder to be empty")
	}

	whereClause, args := wb.Build()
	if whereClause != "1=1" {
		t.Errorf("Expected '1=1' for empty builder, got %q", whereClause)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddEqual(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddEqual("actor_id", "user-1")
	wb.AddEqual("source_ip", "") // skipped

	whereClause, args := wb.Build()
	if whereClause != "actor_id = ?" {
		t.Errorf("Unexpected clause: %q", whereClause)
	}
	if len(args) != 1 || args[0] != "user-1" {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestWhereBuilder_AddTimeRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name       string
		start, end *time.Time
		want       string
		wantArgs   int
	}{
		{"Both bounds", &start, &end, "timestamp >= ? AND timestamp <= ?", 2},
		{"Start only", &start, nil, "timestamp >= ?", 1},
		{"End only", nil, &end, "timestamp <= ?", 1},
		{"Neither", nil, nil, "1=1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			wb.AddTimeRange("timestamp", tt.start, tt.end)

			whereClause, args := wb.Build()
			if whereClause != tt.want {
				t.Errorf("clause = %q, want %q", whereClause, tt.want)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestWhereBuilder_In(t *testing.T) {
	type eventType string

	wb := NewWhereBuilder()
	In(wb, "type", []eventType{"auth.login", "auth.logout"})
	In(wb, "severity", []eventType{}) // skipped

	whereClause, args := wb.Build()
	if whereClause != "type IN (?,?)" {
		t.Errorf("Unexpected clause: %q", whereClause)
	}
	if len(args) != 2 || args[0] != "auth.login" || args[1] != "auth.logout" {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestWhereBuilder_AddSearch(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddSearch("Login", "description", "action")

	whereClause, args := wb.Build()
	want := "(LOWER(description) LIKE ? OR LOWER(action) LIKE ?)"
	if whereClause != want {
		t.Errorf("clause = %q, want %q", whereClause, want)
	}
	if len(args) != 2 || args[0] != "%login%" {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestWhereBuilder_Combined(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	wb := NewWhereBuilder()
	wb.AddEqual("actor_id", "user-1").
		AddTimeRange("timestamp", &start, nil).
		AddClause("outcome = ?", "success")

	whereClause, args := wb.Build()
	want := "actor_id = ? AND timestamp >= ? AND outcome = ?"
	if whereClause != want {
		t.Errorf("clause = %q, want %q", whereClause, want)
	}
	if len(args) != 3 {
		t.Errorf("Expected 3 args, got %d", len(args))
	}
}
