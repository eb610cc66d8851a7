// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package database

import (
	"context"
	"fmt"

	"github.com/atlashq/profilemap/internal/models"
)

// ListLocations returns the map points visible to the scope: one row
// per profile with a location set, joined with the username for
// GeoJSON feature properties.
func (db *DB) ListLocations(ctx context.Context, scope Scope) ([]models.UserLocation, error) {
	query := `SELECT p.user_id, u.username, p.home_address, p.latitude, p.longitude, p.updated_at
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.latitude IS NOT NULL AND p.longitude IS NOT NULL AND u.active`
	args := []interface{}{}
	if !scope.Admin {
		query += ` AND p.user_id = ?`
		args = append(args, scope.ActorID)
	}
	query += ` ORDER BY u.username`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer closeQuietly(rows)

	var locations []models.UserLocation
	for rows.Next() {
		var loc models.UserLocation
		if err := rows.Scan(&loc.UserID, &loc.Username, &loc.HomeAddress,
			&loc.Latitude, &loc.Longitude, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}
