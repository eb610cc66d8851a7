// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package database

import (
	"fmt"
)

// createTables creates the users and profiles tables and their indexes.
// Statements are idempotent so startup is safe on an existing database.
func (db *DB) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR PRIMARY KEY,
			username VARCHAR NOT NULL UNIQUE,
			email VARCHAR NOT NULL,
			first_name VARCHAR DEFAULT '',
			last_name VARCHAR DEFAULT '',
			role VARCHAR NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			password_hash VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL UNIQUE,
			home_address VARCHAR DEFAULT '',
			phone_number VARCHAR DEFAULT '',
			latitude DOUBLE,
			longitude DOUBLE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_user_id ON profiles(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if db.spatialAvailable {
		if err := db.addGeometryColumn(); err != nil {
			return err
		}
	}

	return nil
}

// addGeometryColumn adds the optional geom column used for spatial
// queries when the extension is loaded. Plain latitude/longitude stay
// authoritative either way.
func (db *DB) addGeometryColumn() error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM information_schema.columns
		 WHERE table_name = 'profiles' AND column_name = 'geom'`,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect profiles schema: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := db.conn.Exec(`ALTER TABLE profiles ADD COLUMN geom GEOMETRY`); err != nil {
		return fmt.Errorf("failed to add geom column: %w", err)
	}
	return nil
}
