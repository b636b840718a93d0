// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

// Package api wires the HTTP surface: the audit trail read endpoints,
// health and metrics, and the capture middleware that observes every
// application route.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvallette/auditrail/internal/config"
	"github.com/nvallette/auditrail/internal/middleware"
)

// APIPrefix is stripped from request paths when inferring the audited
// resource from the URL.
const APIPrefix = "/api/v1"

// RouterDeps are the collaborators the router needs.
type RouterDeps struct {
	Handlers  *AuditHandlers
	Submitter middleware.Submitter
	Registry  *middleware.Registry
	Server    config.ServerConfig
}

// NewRouter builds the chi router with the full middleware stack. Routes
// added by the caller onto the returned router are audited automatically;
// health and metrics endpoints are registered with Skip metadata.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))
	r.Use(middleware.ExtractIdentity)
	r.Use(middleware.Capture(deps.Registry, deps.Submitter, APIPrefix))

	// Infrastructure endpoints never generate audit records.
	deps.Registry.Set(http.MethodGet, "/healthz", middleware.RouteMeta{Skip: true})
	deps.Registry.Set(http.MethodGet, "/metrics", middleware.RouteMeta{Skip: true})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route(APIPrefix+"/audit", func(r chi.Router) {
		r.Use(httprate.Limit(
			deps.Server.RateLimitReqs,
			deps.Server.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))

		registerReadRoutes(deps.Registry)

		r.Get("/logs", deps.Handlers.ListLogs)
		r.Get("/logs/actor/{actorID}", deps.Handlers.ListByActor)
		r.Get("/logs/action/{action}", deps.Handlers.ListByAction)
		r.Get("/logs/resource/{resource}", deps.Handlers.ListByResource)
		r.Get("/logs/range", deps.Handlers.ListByDateRange)
		r.Get("/logs/{id}", deps.Handlers.GetLog)
		r.Get("/dlq", deps.Handlers.ListDeadLetters)
	})

	return r
}

// registerReadRoutes marks the read API's own routes so reads of the trail
// are themselves recorded against the audit_logs resource.
func registerReadRoutes(registry *middleware.Registry) {
	meta := middleware.RouteMeta{Resource: "audit_logs"}
	for _, pattern := range []string{
		APIPrefix + "/audit/logs",
		APIPrefix + "/audit/logs/actor/{actorID}",
		APIPrefix + "/audit/logs/action/{action}",
		APIPrefix + "/audit/logs/resource/{resource}",
		APIPrefix + "/audit/logs/range",
		APIPrefix + "/audit/logs/{id}",
	} {
		registry.Set(http.MethodGet, pattern, meta)
	}
	registry.Set(http.MethodGet, APIPrefix+"/audit/dlq", middleware.RouteMeta{Skip: true})
}
