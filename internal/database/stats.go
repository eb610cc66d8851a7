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

// GetProfileStats returns aggregate counts for the dashboard. Admin only.
func (db *DB) GetProfileStats(ctx context.Context) (*models.ProfileStats, error) {
	var stats models.ProfileStats

	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM profiles),
			(SELECT COUNT(*) FROM profiles WHERE latitude IS NOT NULL AND longitude IS NOT NULL),
			(SELECT COUNT(*) FROM users WHERE role = 'admin'),
			(SELECT COUNT(*) FROM users WHERE role = 'staff'),
			(SELECT COUNT(*) FROM users WHERE active)
	`).Scan(
		&stats.TotalUsers,
		&stats.TotalProfiles,
		&stats.LocatedProfiles,
		&stats.AdminCount,
		&stats.StaffCount,
		&stats.ActiveUsersCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile stats: %w", err)
	}

	return &stats, nil
}
