// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

/*
Package main is the entry point for the ProfileMap server.

ProfileMap is a self-hosted directory of user accounts and their home
locations. Each account owns exactly one profile carrying contact details
and optional geographic coordinates, and every profile with coordinates
appears as a marker on the embedded Leaflet map.

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file, and environment variables
 2. Logging: zerolog structured logging
 3. Database: DuckDB with the spatial extension when available
 4. Admin bootstrap: idempotent creation of the configured admin account
 5. Audit: DuckDB-backed async audit trail with retention cleanup
 6. Sessions: Badger or in-memory session store with expiry sweeps
 7. Auth: JWT manager, bcrypt hasher, login lockout tracking
 8. Authorization: Casbin RBAC enforcer (admin inherits staff)
 9. HTTP server: Chi router with graceful shutdown on SIGINT/SIGTERM

The server listens on a single port and serves the REST API under
/api/v1, Prometheus metrics under /metrics, and the embedded frontend
for everything else.
*/
package main
