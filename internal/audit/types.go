// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

// Package audit defines the audit record model, redaction, and the
// persistence contract for the audit trail.
//
// Records are immutable once persisted: the store exposes create, read and
// bulk delete-by-age, never update.
package audit

import (
	"context"
	"errors"
	"time"
)

// ActionType categorizes the audited operation.
type ActionType string

const (
	ActionCreate         ActionType = "create"
	ActionUpdate         ActionType = "update"
	ActionDelete         ActionType = "delete"
	ActionLogin          ActionType = "login"
	ActionLogout         ActionType = "logout"
	ActionPasswordChange ActionType = "password_change"
	ActionPasswordReset  ActionType = "password_reset"
	ActionAccess         ActionType = "access"
	ActionCustom         ActionType = "custom"
)

// ValidActionTypes lists every recognized action type, for input validation.
var ValidActionTypes = []ActionType{
	ActionCreate, ActionUpdate, ActionDelete,
	ActionLogin, ActionLogout,
	ActionPasswordChange, ActionPasswordReset,
	ActionAccess, ActionCustom,
}

// IsValid reports whether the action type is a recognized enum value.
func (a ActionType) IsValid() bool {
	for _, v := range ValidActionTypes {
		if a == v {
			return true
		}
	}
	return false
}

// StatusSuccess and StatusError are the values of the metadata "status" field.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Record is one entry in the audit trail.
//
// PreviousValue, NewValue and Metadata are arbitrary nested JSON objects and
// must pass through Redact before persistence.
type Record struct {
	// ID is assigned by the store at persistence time.
	ID string `json:"id"`

	// ActorID and ActorEmail identify who triggered the action.
	// Empty for anonymous actions; for login/register flows they are
	// back-filled from the response before enqueue.
	ActorID    string `json:"actor_id,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	// Action is never empty on a persisted record.
	Action ActionType `json:"action"`

	// ResourceType names the affected domain entity ("users", "posts", ...).
	ResourceType string `json:"resource_type,omitempty"`

	// ResourceID identifies the specific affected instance, if any.
	ResourceID string `json:"resource_id,omitempty"`

	// PreviousValue holds pre-state or request parameters.
	PreviousValue map[string]any `json:"previous_value,omitempty"`

	// NewValue holds post-state or the request body.
	NewValue map[string]any `json:"new_value,omitempty"`

	// ClientIP and UserAgent record request provenance.
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Metadata carries at minimum status, status_code, method, path,
	// query, duration_ms, and on failure error_message/error_code.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is server-assigned at persistence time and is the sole
	// ordering key for range queries.
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("audit record not found")

// ListOptions controls pagination of store queries.
type ListOptions struct {
	Limit  int
	Offset int
}

const defaultPageSize = 10

// normalize applies the default page size and clamps negative offsets.
func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultPageSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Page is one page of query results plus the total matching count.
type Page struct {
	Records []Record `json:"records"`
	Total   int64    `json:"total"`
}

// Store is the persistence contract for audit records.
//
// All list operations order by CreatedAt descending and return both the page
// and the total matching count. Implementations must support concurrent
// inserts; records are insert-only so no application-level locking beyond the
// store's own is required.
type Store interface {
	// Create persists a record, assigning ID and CreatedAt if unset.
	Create(ctx context.Context, rec *Record) error

	// GetByID returns the record with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Record, error)

	// FindByActor lists records for one actor ID.
	FindByActor(ctx context.Context, actorID string, opts ListOptions) (*Page, error)

	// FindByAction lists records with one action type.
	FindByAction(ctx context.Context, action ActionType, opts ListOptions) (*Page, error)

	// FindByResource lists records for a resource type, optionally narrowed
	// to a single resource ID.
	FindByResource(ctx context.Context, resourceType, resourceID string, opts ListOptions) (*Page, error)

	// FindByDateRange lists records with start <= CreatedAt < end.
	FindByDateRange(ctx context.Context, start, end time.Time, opts ListOptions) (*Page, error)

	// FindAll lists all records.
	FindAll(ctx context.Context, opts ListOptions) (*Page, error)

	// DeleteOlderThan removes records with CreatedAt strictly before the
	// cutoff and returns the count deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
