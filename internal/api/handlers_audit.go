// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvallette/auditrail/internal/audit"
	"github.com/nvallette/auditrail/internal/models"
	"github.com/nvallette/auditrail/internal/queue"
)

// AuditHandlers exposes the audit trail read API.
type AuditHandlers struct {
	store audit.Store
	dlq   *queue.DLQ
}

// NewAuditHandlers creates the handlers. dlq may be nil, in which case the
// dead-letter endpoint reports an empty list.
func NewAuditHandlers(store audit.Store, dlq *queue.DLQ) *AuditHandlers {
	return &AuditHandlers{store: store, dlq: dlq}
}

// listRequest carries the pagination parameters shared by all list endpoints.
type listRequest struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`
}

func (h *AuditHandlers) pagination(w http.ResponseWriter, r *http.Request) (audit.ListOptions, bool) {
	req := listRequest{
		Limit:  getIntParam(r, "limit", 10),
		Offset: getIntParam(r, "offset", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return audit.ListOptions{}, false
	}
	return audit.ListOptions{Limit: req.Limit, Offset: req.Offset}, true
}

func (h *AuditHandlers) respondPage(w http.ResponseWriter, page *audit.Page, opts audit.ListOptions) {
	respondData(w, models.AuditLogList{
		Logs: page.Records,
		Pagination: models.PaginationInfo{
			Limit:  opts.Limit,
			Offset: opts.Offset,
			Total:  page.Total,
		},
	})
}

// ListLogs handles GET /api/v1/audit/logs.
func (h *AuditHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.pagination(w, r)
	if !ok {
		return
	}

	page, err := h.store.FindAll(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to query audit logs", err)
		return
	}
	h.respondPage(w, page, opts)
}

// GetLog handles GET /api/v1/audit/logs/{id}.
func (h *AuditHandlers) GetLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Audit record not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to query audit log", err)
		return
	}
	respondData(w, rec)
}

// ListByActor handles GET /api/v1/audit/logs/actor/{actorID}.
func (h *AuditHandlers) ListByActor(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.pagination(w, r)
	if !ok {
		return
	}

	page, err := h.store.FindByActor(r.Context(), chi.URLParam(r, "actorID"), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to query audit logs", err)
		return
	}
	h.respondPage(w, page, opts)
}

// ListByAction handles GET /api/v1/audit/logs/action/{action}.
func (h *AuditHandlers) ListByAction(w http.ResponseWriter, r *http.Request) {
	action := audit.ActionType(chi.URLParam(r, "action"))
	if !action.IsValid() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown action type", nil)
		return
	}

	opts, ok := h.pagination(w, r)
	if !ok {
		return
	}

	page, err := h.store.FindByAction(r.Context(), action, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to query audit logs", err)
		return
	}
	h.respondPage(w, page, opts)
}

// ListByResource handles GET /api/v1/audit/logs/resource/{resource}, with an
// optional resource_id query parameter narrowing to one entity.
func (h *AuditHandlers) ListByResource(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.pagination(w, r)
	if !ok {
		return
	}

	resource := chi.URLParam(r, "resource")
	resourceID := r.URL.Query().Get("resource_id")

	page, err := h.store.FindByResource(r.Context(), resource, resourceID, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to query audit logs", err)
		return
	}
	h.respondPage(w, page, opts)
}

// ListByDateRange handles GET /api/v1/audit/logs/range?start_date&end_date.
// The range is half-open: start inclusive, end exclusive.
func (h *AuditHandlers) ListByDateRange(w http.ResponseWriter, r *http.Request) {
	startRaw := r.URL.Query().Get("start_date")
	endRaw := r.URL.Query().Get("end_date")
	if startRaw == "" || endRaw == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start_date and end_date are required", nil)
		return
	}

	start, err := parseTimeParam(startRaw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	end, err := parseTimeParam(endRaw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if !start.Before(end) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start_date must be before end_date", nil)
		return
	}

	opts, ok := h.pagination(w, r)
	if !ok {
		return
	}

	page, err := h.store.FindByDateRange(r.Context(), start, end, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to query audit logs", err)
		return
	}
	h.respondPage(w, page, opts)
}

// ListDeadLetters handles GET /api/v1/audit/dlq.
func (h *AuditHandlers) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	entries := []queue.DeadLetter{}
	if h.dlq != nil {
		entries = h.dlq.Entries()
	}
	respondData(w, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
