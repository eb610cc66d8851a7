// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/atlashq/profilemap/internal/config"
	"github.com/atlashq/profilemap/internal/logging"
)

// NewSessionStore creates a session store from configuration.
// Supported backends: "memory", "badger".
func NewSessionStore(cfg *config.SecurityConfig) (SessionStore, error) {
	switch cfg.SessionStore {
	case "", "memory":
		logging.Debug().Msg("Using in-memory session store")
		return NewMemorySessionStore(), nil
	case "badger":
		return NewBadgerSessionStore(cfg.SessionStorePath)
	default:
		return nil, fmt.Errorf("unknown session store backend: %s", cfg.SessionStore)
	}
}

// StartSessionCleanup runs CleanupExpired on the store at the given
// interval until the context is canceled.
func StartSessionCleanup(ctx context.Context, store SessionStore, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := store.CleanupExpired(ctx)
				if err != nil {
					logging.Error().Err(err).Msg("Session cleanup error")
				} else if count > 0 {
					logging.Debug().Int("count", count).Msg("Cleaned up expired sessions")
				}
			}
		}
	}()
}
