// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package database

// Scope restricts queries to the rows the calling user may see.
// Admins see every row; staff users see only rows owned by ActorID.
// A row outside the caller's scope behaves exactly like a missing row,
// so handlers return 404 rather than leaking existence.
type Scope struct {
	ActorID string
	Admin   bool
}

// AdminScope returns a scope that sees every row.
func AdminScope() Scope {
	return Scope{Admin: true}
}

// OwnerScope returns a scope restricted to rows owned by userID.
func OwnerScope(userID string) Scope {
	return Scope{ActorID: userID}
}

// CanAccess reports whether the scope may access rows owned by userID.
func (s Scope) CanAccess(userID string) bool {
	return s.Admin || s.ActorID == userID
}
