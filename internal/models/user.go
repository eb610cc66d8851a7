// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package models

import (
	"time"
)

// User roles. Admins see and manage every account; staff users are
// restricted to their own user row and profile.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// ValidRole reports whether role is a recognized role name.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// User represents a user account. The password hash never leaves the
// database layer and is excluded from JSON serialization.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserWithProfile is a user row with its profile embedded, as returned
// by the read-only users endpoints.
type UserWithProfile struct {
	User
	Profile *Profile `json:"profile,omitempty"`
}

// CreateUserRequest is the payload for creating a user account.
// Creating a user also creates an empty profile for it.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150,alphanumunicode"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=12,max=128"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Role      string `json:"role" validate:"required,oneof=admin staff"`
}
