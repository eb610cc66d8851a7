// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlashq/profilemap/internal/auth"
	"github.com/atlashq/profilemap/internal/authz"
	"github.com/atlashq/profilemap/internal/middleware"
	"github.com/atlashq/profilemap/internal/web"
)

// Router wires handlers, authentication, and the Casbin policy layer
// into the Chi route tree.
type Router struct {
	handler *Handler
	authMW  *auth.Middleware
	authzMW *authz.Middleware
}

// NewRouter creates the router.
func NewRouter(handler *Handler, authMW *auth.Middleware, authzMW *authz.Middleware) *Router {
	return &Router{
		handler: handler,
		authMW:  authMW,
		authzMW: authzMW,
	}
}

// Setup builds the HTTP route tree.
func (router *Router) Setup() http.Handler {
	h := router.handler
	cfg := h.cfg

	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints stay unauthenticated for load balancers.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, cfg.Security.RateLimitWindow))
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// Authentication endpoints: strict per-IP rate limiting on login.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		loginHandlers := chi.Chain(router.authMW.LoginRateLimit)
		if !cfg.Security.RateLimitDisabled {
			loginHandlers = chi.Chain(
				httprate.LimitByIP(cfg.Security.LockoutThreshold*2, cfg.Security.RateLimitWindow),
				router.authMW.LoginRateLimit,
			)
		}
		r.With(loginHandlers...).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(router.authMW.Authenticate)
			r.Use(router.authzMW.Require(authz.ObjectAccount, authz.ActionRead))
			r.Get("/me", h.Me)
		})

		// Logout stays reachable with a revoked or expired session so
		// a repeated logout still clears the cookie.
		r.With(router.authMW.AuthenticateLenient).Post("/logout", h.Logout)
	})

	// Data endpoints: authenticated, rate limited, policy checked.
	r.Route("/api/v1", func(r chi.Router) {
		if !cfg.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW.Authenticate)

		// User management. Reads and writes are admin territory; the
		// storage scope additionally hides foreign rows from staff.
		r.Route("/users", func(r chi.Router) {
			r.With(router.authzMW.Require(authz.ObjectUsers, authz.ActionRead)).Get("/", h.ListUsers)
			r.With(router.authzMW.Require(authz.ObjectUsers, authz.ActionWrite)).Post("/", h.CreateUser)
			r.With(router.authzMW.Require(authz.ObjectUsers, authz.ActionRead)).Get("/{id}", h.GetUser)
			r.With(router.authzMW.Require(authz.ObjectUsers, authz.ActionWrite)).Put("/{id}", h.UpdateUser)
			r.With(router.authzMW.Require(authz.ObjectUsers, authz.ActionDelete)).Delete("/{id}", h.DeleteUser)
		})

		// Profiles: staff can read and write their own, admins all.
		r.Route("/profiles", func(r chi.Router) {
			r.With(router.authzMW.Require(authz.ObjectProfiles, authz.ActionRead)).Get("/", h.ListProfiles)
			r.With(router.authzMW.Require(authz.ObjectProfiles, authz.ActionRead)).Get("/me", h.MyProfile)
			r.With(router.authzMW.Require(authz.ObjectProfiles, authz.ActionRead)).Get("/{id}", h.GetProfile)
			r.With(router.authzMW.Require(authz.ObjectProfiles, authz.ActionWrite)).Put("/{id}", h.UpdateProfile)
			r.With(router.authzMW.Require(authz.ObjectProfiles, authz.ActionDelete)).Delete("/{id}", h.DeleteProfile)
		})

		// Map data.
		r.Route("/locations", func(r chi.Router) {
			r.Use(router.authzMW.Require(authz.ObjectLocations, authz.ActionRead))
			r.Get("/", h.Locations)
			r.Get("/geojson", h.LocationsGeoJSON)
		})
		r.With(router.authzMW.Require(authz.ObjectMap, authz.ActionRead)).Get("/map-config", h.MapConfig)

		// Admin dashboards.
		r.With(router.authzMW.Require(authz.ObjectStats, authz.ActionRead)).Get("/stats", h.Stats)

		r.Route("/audit", func(r chi.Router) {
			r.Use(router.authzMW.Require(authz.ObjectAudit, authz.ActionRead))
			r.Get("/events", h.AuditEvents)
			r.Get("/events/{id}", h.AuditEvent)
			r.Get("/stats", h.AuditStats)
			r.Get("/types", h.AuditTypes)
			r.Get("/export", h.AuditExport)
		})
	})

	// Prometheus scrape endpoint.
	r.Handle("/metrics", promhttp.Handler())

	// Embedded frontend catches all unmatched routes.
	r.NotFound(web.Handler().ServeHTTP)

	return r
}
