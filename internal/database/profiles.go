// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atlashq/profilemap/internal/models"
)

const profileColumns = `p.id, p.user_id, u.username, p.home_address, p.phone_number,
	p.latitude, p.longitude, p.created_at, p.updated_at`

const profileSelect = `SELECT ` + profileColumns + ` FROM profiles p JOIN users u ON u.id = p.user_id`

// GetProfileByID retrieves a profile by its ID within the given scope.
// A profile owned by another user is indistinguishable from a missing
// one: both return ErrNotFound.
func (db *DB) GetProfileByID(ctx context.Context, scope Scope, id string) (*models.Profile, error) {
	row := db.conn.QueryRowContext(ctx, profileSelect+` WHERE p.id = ?`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, err
	}
	if !scope.CanAccess(p.UserID) {
		return nil, ErrNotFound
	}
	return p, nil
}

// GetProfileByUserID retrieves the profile owned by userID within the scope.
func (db *DB) GetProfileByUserID(ctx context.Context, scope Scope, userID string) (*models.Profile, error) {
	if !scope.CanAccess(userID) {
		return nil, ErrNotFound
	}
	row := db.conn.QueryRowContext(ctx, profileSelect+` WHERE p.user_id = ?`, userID)
	return scanProfile(row)
}

// ListProfiles returns profiles visible to the scope, newest first.
// Staff scopes get at most their own profile.
func (db *DB) ListProfiles(ctx context.Context, scope Scope, limit, offset int) ([]models.Profile, error) {
	query := profileSelect
	args := []interface{}{}
	if !scope.Admin {
		query += ` WHERE p.user_id = ?`
		args = append(args, scope.ActorID)
	}
	query += ` ORDER BY p.created_at DESC, p.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer closeQuietly(rows)

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := scanProfileFields(rows, &p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CountProfiles returns the number of profiles visible to the scope.
func (db *DB) CountProfiles(ctx context.Context, scope Scope) (int, error) {
	query := `SELECT COUNT(*) FROM profiles`
	args := []interface{}{}
	if !scope.Admin {
		query += ` WHERE user_id = ?`
		args = append(args, scope.ActorID)
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

// UpdateProfile applies an update request to the profile identified by
// profileID. Latitude and longitude are set together or cleared
// together; the caller validates one-sided input before reaching here.
// created_at is immutable, updated_at is set on every update.
func (db *DB) UpdateProfile(ctx context.Context, scope Scope, profileID string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	current, err := db.GetProfileByID(ctx, scope, profileID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	var query string
	var args []interface{}

	switch {
	case req.Latitude != nil && req.Longitude != nil && db.spatialAvailable:
		query = `UPDATE profiles SET home_address = ?, phone_number = ?,
			latitude = ?, longitude = ?, geom = ST_Point(?, ?), updated_at = ? WHERE id = ?`
		args = []interface{}{req.HomeAddress, req.PhoneNumber,
			*req.Latitude, *req.Longitude, *req.Longitude, *req.Latitude, now, profileID}
	case req.Latitude != nil && req.Longitude != nil:
		query = `UPDATE profiles SET home_address = ?, phone_number = ?,
			latitude = ?, longitude = ?, updated_at = ? WHERE id = ?`
		args = []interface{}{req.HomeAddress, req.PhoneNumber,
			*req.Latitude, *req.Longitude, now, profileID}
	case db.spatialAvailable:
		// Both coordinates absent: clear the location.
		query = `UPDATE profiles SET home_address = ?, phone_number = ?,
			latitude = NULL, longitude = NULL, geom = NULL, updated_at = ? WHERE id = ?`
		args = []interface{}{req.HomeAddress, req.PhoneNumber, now, profileID}
	default:
		query = `UPDATE profiles SET home_address = ?, phone_number = ?,
			latitude = NULL, longitude = NULL, updated_at = ? WHERE id = ?`
		args = []interface{}{req.HomeAddress, req.PhoneNumber, now, profileID}
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile %s: %w", profileID, err)
	}
	if err := requireRowAffected(res); err != nil {
		return nil, err
	}

	current.HomeAddress = req.HomeAddress
	current.PhoneNumber = req.PhoneNumber
	current.Latitude = req.Latitude
	current.Longitude = req.Longitude
	current.UpdatedAt = now
	return current, nil
}

// DeleteProfile removes a profile row. Admin only: the caller enforces
// the role before reaching the store.
func (db *DB) DeleteProfile(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", id, err)
	}
	return requireRowAffected(res)
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.HomeAddress, &p.PhoneNumber,
		&p.Latitude, &p.Longitude, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return &p, nil
}

func scanProfileFields(rows *sql.Rows, p *models.Profile) error {
	err := rows.Scan(&p.ID, &p.UserID, &p.Username, &p.HomeAddress, &p.PhoneNumber,
		&p.Latitude, &p.Longitude, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to scan profile: %w", err)
	}
	return nil
}
