// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

// Package config loads and validates ProfileMap configuration.
//
// Configuration is layered with koanf: built-in defaults, then an
// optional YAML config file, then environment variables. Config is
// immutable after loading and safe for concurrent reads.
package config

import (
	"time"
)

// Config is the root configuration for the ProfileMap server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Map      MapConfig      `koanf:"map"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development" or "production"
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use NumCPU
}

// APIConfig holds API pagination settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication and authorization settings.
//
// Environment Variables:
//   - JWT_SECRET: HMAC signing secret (min 32 chars in production)
//   - SESSION_TIMEOUT: session/token lifetime (default: 24h)
//   - ADMIN_USERNAME / ADMIN_PASSWORD / ADMIN_EMAIL: bootstrap admin account
//   - SESSION_STORE: "memory" or "badger" (default: badger)
//   - TRUSTED_PROXIES: comma-separated CIDRs allowed to set X-Forwarded-For
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	RememberMeFor  time.Duration `koanf:"remember_me_for"`

	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
	AdminEmail    string `koanf:"admin_email"`

	BcryptCost int `koanf:"bcrypt_cost"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// LockoutThreshold is the number of failed logins per username+IP
	// before further attempts are throttled.
	LockoutThreshold int           `koanf:"lockout_threshold"`
	LockoutWindow    time.Duration `koanf:"lockout_window"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`

	// SessionStore specifies the session storage backend: "memory" or "badger".
	SessionStore     string `koanf:"session_store"`
	SessionStorePath string `koanf:"session_store_path"`

	CookieSecure bool `koanf:"cookie_secure"`
}

// MapConfig holds settings for the embedded Leaflet map page.
type MapConfig struct {
	TileURL       string  `koanf:"tile_url"`
	Attribution   string  `koanf:"attribution"`
	CenterLat     float64 `koanf:"center_lat"`
	CenterLng     float64 `koanf:"center_lng"`
	DefaultZoom   int     `koanf:"default_zoom"`
	MaxZoom       int     `koanf:"max_zoom"`
	ClusterPoints bool    `koanf:"cluster_points"`
}

// AuditConfig holds audit event logging settings.
type AuditConfig struct {
	Enabled       bool          `koanf:"enabled"`
	BufferSize    int           `koanf:"buffer_size"`
	RetentionDays int           `koanf:"retention_days"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8475,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/profilemap.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			JWTSecret:      "",
			SessionTimeout: 24 * time.Hour,
			RememberMeFor:  30 * 24 * time.Hour,
			AdminUsername:  "",
			AdminPassword:  "",
			AdminEmail:     "",
			BcryptCost:     12,

			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,

			LockoutThreshold: 5,
			LockoutWindow:    1 * time.Minute,

			CORSOrigins:    []string{"*"},
			TrustedProxies: []string{},

			SessionStore:     "badger",
			SessionStorePath: "/data/sessions",

			CookieSecure: true,
		},
		Map: MapConfig{
			TileURL:       "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution:   "&copy; OpenStreetMap contributors",
			CenterLat:     20.0,
			CenterLng:     0.0,
			DefaultZoom:   2,
			MaxZoom:       18,
			ClusterPoints: false,
		},
		Audit: AuditConfig{
			Enabled:       true,
			BufferSize:    1000,
			RetentionDays: 90,
			FlushInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
