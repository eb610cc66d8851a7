// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

// Package query provides parameterized WHERE clause construction for
// the storage layers. All values travel as bind arguments.
package query

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder accumulates SQL conditions joined with AND.
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddClause adds a raw condition fragment with its bind arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddEqual adds an equality condition. Empty values are skipped so
// optional filters can be passed through unconditionally.
func (wb *WhereBuilder) AddEqual(column, value string) *WhereBuilder {
	if value != "" {
		wb.clauses = append(wb.clauses, column+" = ?")
		wb.args = append(wb.args, value)
	}
	return wb
}

// AddTimeRange adds inclusive lower and upper bounds on a timestamp
// column. Nil bounds are skipped.
func (wb *WhereBuilder) AddTimeRange(column string, start, end *time.Time) *WhereBuilder {
	if start != nil {
		wb.clauses = append(wb.clauses, column+" >= ?")
		wb.args = append(wb.args, *start)
	}
	if end != nil {
		wb.clauses = append(wb.clauses, column+" <= ?")
		wb.args = append(wb.args, *end)
	}
	return wb
}

// AddSearch adds a case-insensitive substring match across the given
// columns, ORed together.
func (wb *WhereBuilder) AddSearch(text string, columns ...string) *WhereBuilder {
	if text == "" || len(columns) == 0 {
		return wb
	}
	pattern := "%" + strings.ToLower(text) + "%"
	parts := make([]string, len(columns))
	for i, column := range columns {
		parts[i] = "LOWER(" + column + ") LIKE ?"
		wb.args = append(wb.args, pattern)
	}
	wb.clauses = append(wb.clauses, "("+strings.Join(parts, " OR ")+")")
	return wb
}

// In adds an IN condition for a slice of string-like values. Empty
// slices are skipped.
func In[T ~string](wb *WhereBuilder, column string, values []T) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, string(v))
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	return wb
}

// Build returns the WHERE clause body (without the keyword) and its
// bind arguments. An empty builder returns "1=1".
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// IsEmpty reports whether any conditions have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
