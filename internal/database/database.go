// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

// Package database provides the DuckDB-backed store for users, profiles,
// and map locations. All queries are scoped through a Scope value that
// encodes the two-tier permission model: admins see every row, staff
// users see only their own.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/atlashq/profilemap/internal/config"
	"github.com/atlashq/profilemap/internal/logging"
)

// ErrNotFound is returned when a requested row does not exist or is not
// visible to the caller's scope. Callers cannot distinguish the two cases.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint (username, email)
// would be violated.
var ErrDuplicate = errors.New("already exists")

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn             *sql.DB
	cfg              *config.DatabaseConfig
	spatialAvailable bool // Tracks whether the spatial extension is loaded
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments. The spatial extension is loaded explicitly below.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is embedded: a single writer connection avoids transaction
	// conflicts between concurrent writes.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{
		conn: conn,
		cfg:  cfg,
	}

	db.loadSpatialExtension()

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// loadSpatialExtension attempts to load the DuckDB spatial extension.
// The extension is optional: plain latitude/longitude columns remain
// authoritative, the geom column is only populated when available.
func (db *DB) loadSpatialExtension() {
	if _, err := db.conn.Exec("LOAD spatial;"); err != nil {
		logging.Debug().Err(err).Msg("Spatial extension unavailable, using plain coordinate columns")
		db.spatialAvailable = false
		return
	}
	db.spatialAvailable = true
	logging.Debug().Msg("Spatial extension loaded")
}

// IsSpatialAvailable returns whether the spatial extension is available.
func (db *DB) IsSpatialAvailable() bool {
	return db.spatialAvailable
}

// Conn returns the underlying SQL database connection. Used by packages
// that need direct database access, such as the audit store.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints and closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	// Flush the WAL so the next startup does not replay schema statements.
	if _, err := db.conn.Exec("CHECKPOINT;"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return db.conn.Close()
}

// closeQuietly closes a resource, logging failures at debug level.
func closeQuietly(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close resource")
	}
}
