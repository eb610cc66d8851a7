// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/config"
	"github.com/atlashq/profilemap/internal/database"
	"github.com/atlashq/profilemap/internal/logging"
	"github.com/atlashq/profilemap/internal/models"
)

// bootstrapAdmin creates the configured admin account on first start.
// The operation is idempotent: an existing account with the same
// username is left untouched, password changes included, so a rotated
// ADMIN_PASSWORD never silently overwrites a live credential.
func bootstrapAdmin(ctx context.Context, db *database.DB, hasher *auth.PasswordHasher, cfg *config.SecurityConfig) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		logging.Warn().Msg("ADMIN_USERNAME/ADMIN_PASSWORD not set; no admin account will be created")
		return nil
	}

	existing, err := db.GetUserByUsername(ctx, cfg.AdminUsername)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			logging.Warn().
				Str("username", cfg.AdminUsername).
				Str("role", existing.Role).
				Msg("Configured admin username exists with a non-admin role; leaving it unchanged")
		}
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	hash, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		Role:         models.RoleAdmin,
		Active:       true,
		PasswordHash: hash,
	}
	if err := db.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// Lost a race with a concurrent start; the account exists.
			return nil
		}
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logging.Info().
		Str("username", admin.Username).
		Str("user_id", admin.ID).
		Msg("Admin account created")
	return nil
}
