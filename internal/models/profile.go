// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package models

import (
	"time"
)

// Profile represents a user's profile. Every user owns exactly one
// profile, created automatically alongside the account.
//
// Latitude and Longitude are pointers: nil means the profile has no
// geographic location set. They are always both nil or both non-nil.
type Profile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	HomeAddress string    `json:"home_address,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasLocation reports whether the profile has a geographic location.
func (p *Profile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// UpdateProfileRequest is the payload for updating a profile.
//
// Latitude and Longitude must be provided together: one without the
// other is a validation error. Omitting both clears the location.
type UpdateProfileRequest struct {
	HomeAddress string   `json:"home_address" validate:"max=500"`
	PhoneNumber string   `json:"phone_number" validate:"omitempty,max=32,e164|numeric"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// UserLocation is a single user's map point, joined with the username
// for display in GeoJSON feature properties.
type UserLocation struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	HomeAddress string    `json:"home_address,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileStats summarizes profile coverage for the dashboard.
type ProfileStats struct {
	TotalUsers       int `json:"total_users"`
	TotalProfiles    int `json:"total_profiles"`
	LocatedProfiles  int `json:"located_profiles"`
	AdminCount       int `json:"admin_count"`
	StaffCount       int `json:"staff_count"`
	ActiveUsersCount int `json:"active_users_count"`
}
