// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package middleware

import (
	"sync"

	"github.com/nvallette/auditrail/internal/audit"
)

// RouteMeta declares per-route audit behavior, overriding what the capture
// middleware would otherwise infer from the HTTP verb and path.
type RouteMeta struct {
	// Skip exempts the route from audit capture entirely.
	Skip bool

	// Action overrides the verb-based action inference when non-empty.
	Action audit.ActionType

	// Resource overrides the path-based resource inference when non-empty.
	Resource string
}

// Registry maps routes to their audit metadata, keyed by "METHOD pattern"
// using the router's route pattern (e.g. "GET /api/v1/posts/{id}").
// Routes without an entry get fully inferred behavior.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]RouteMeta
}

// NewRegistry creates an empty route metadata registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]RouteMeta)}
}

// Set registers metadata for a route.
func (reg *Registry) Set(method, pattern string, meta RouteMeta) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.routes[method+" "+pattern] = meta
}

// Get looks up metadata for a route.
func (reg *Registry) Get(method, pattern string) (RouteMeta, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	meta, ok := reg.routes[method+" "+pattern]
	return meta, ok
}
