// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nvallette/auditrail/internal/audit"
)

// captureSubmitter collects submitted records on a channel so tests can wait
// for the asynchronous submit.
type captureSubmitter struct {
	records chan *audit.Record
}

func newCaptureSubmitter() *captureSubmitter {
	return &captureSubmitter{records: make(chan *audit.Record, 8)}
}

func (s *captureSubmitter) Enqueue(_ context.Context, rec *audit.Record) {
	s.records <- rec
}

func (s *captureSubmitter) wait(t *testing.T) *audit.Record {
	t.Helper()
	select {
	case rec := <-s.records:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("no record submitted")
		return nil
	}
}

func (s *captureSubmitter) expectNone(t *testing.T) {
	t.Helper()
	select {
	case rec := <-s.records:
		t.Fatalf("unexpected record submitted: %+v", rec)
	case <-time.After(100 * time.Millisecond):
	}
}

func setupCapture(t *testing.T, register func(r chi.Router), registry *Registry) (*captureSubmitter, chi.Router) {
	t.Helper()
	if registry == nil {
		registry = NewRegistry()
	}
	submitter := newCaptureSubmitter()

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(ExtractIdentity)
	r.Use(Capture(registry, submitter, "/api/v1"))
	register(r)

	return submitter, r
}

func TestCapture_DeleteInfersActionAndResource(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Delete("/api/v1/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/posts/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.Action != audit.ActionDelete {
		t.Errorf("Action = %q, want delete", rec.Action)
	}
	if rec.ResourceType != "posts" {
		t.Errorf("ResourceType = %q, want posts", rec.ResourceType)
	}
	if rec.ResourceID != "42" {
		t.Errorf("ResourceID = %q, want 42", rec.ResourceID)
	}
	if rec.PreviousValue["id"] != "42" {
		t.Errorf("PreviousValue id = %v, want 42", rec.PreviousValue["id"])
	}
	if rec.Metadata["status"] != audit.StatusSuccess {
		t.Errorf("status = %v, want success", rec.Metadata["status"])
	}
}

func TestCapture_PostBodyBecomesNewValue(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Post("/api/v1/posts", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	}, nil)

	body := strings.NewReader(`{"title":"hello","password":"hunter2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.Action != audit.ActionCreate {
		t.Errorf("Action = %q, want create", rec.Action)
	}
	if rec.NewValue["title"] != "hello" {
		t.Errorf("NewValue title = %v", rec.NewValue["title"])
	}
	// Capture stores the raw value; redaction happens at persistence.
	if rec.NewValue["password"] != "hunter2" {
		t.Errorf("NewValue password = %v, want raw value pre-redaction", rec.NewValue["password"])
	}
	if rec.PreviousValue != nil {
		t.Errorf("PreviousValue = %v, want nil for POST", rec.PreviousValue)
	}
}

func TestCapture_LoginBackfillsActor(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Post("/api/v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token":"jwt","user":{"id":"u1","email":"alice@example.com"}}`))
		})
	}, nil)

	body := strings.NewReader(`{"email":"alice@example.com","password":"hunter2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.Action != audit.ActionLogin {
		t.Errorf("Action = %q, want login", rec.Action)
	}
	if rec.ActorID != "u1" {
		t.Errorf("ActorID = %q, want u1", rec.ActorID)
	}
	if rec.ActorEmail != "alice@example.com" {
		t.Errorf("ActorEmail = %q", rec.ActorEmail)
	}
}

func TestCapture_RegisterBackfillsFromFlatResponse(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Post("/api/v1/auth/register", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"u9","email":"bob@example.com"}`))
		})
	}, nil)

	body := strings.NewReader(`{"email":"bob@example.com","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.Action != audit.ActionCreate {
		t.Errorf("Action = %q, want create", rec.Action)
	}
	if rec.ActorID != "u9" {
		t.Errorf("ActorID = %q, want u9", rec.ActorID)
	}
}

func TestCapture_SkipRoute(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Set(http.MethodGet, "/healthz", RouteMeta{Skip: true})

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}, registry)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	submitter.expectNone(t)
}

func TestCapture_MetaOverridesInference(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Set(http.MethodPost, "/api/v1/posts/{id}/publish", RouteMeta{
		Action:   audit.ActionCustom,
		Resource: "publications",
	})

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Post("/api/v1/posts/{id}/publish", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}, registry)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/7/publish", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.Action != audit.ActionCustom {
		t.Errorf("Action = %q, want custom", rec.Action)
	}
	if rec.ResourceType != "publications" {
		t.Errorf("ResourceType = %q, want publications", rec.ResourceType)
	}
}

func TestCapture_GetWithIDUsesResponseAsPreviousValue(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Get("/api/v1/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"id":"42","title":"hello"}}`))
		})
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.Action != audit.ActionAccess {
		t.Errorf("Action = %q, want access", rec.Action)
	}
	if rec.PreviousValue["title"] != "hello" {
		t.Errorf("PreviousValue = %v, want unwrapped response data", rec.PreviousValue)
	}
}

func TestCapture_MetadataCarriesQuery(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Get("/api/v1/posts", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts?tag=go&page=2", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	query, ok := rec.Metadata["query"].(map[string]any)
	if !ok {
		t.Fatalf("metadata query is %T, want map", rec.Metadata["query"])
	}
	if query["tag"] != "go" {
		t.Errorf("query tag = %v, want go", query["tag"])
	}
	if query["page"] != "2" {
		t.Errorf("query page = %v, want 2", query["page"])
	}
}

func TestCapture_PostQueryStringRecorded(t *testing.T) {
	t.Parallel()

	// POST requests never populate previousValue from params, so the query
	// string must survive in metadata.
	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Post("/api/v1/posts", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts?draft=true", strings.NewReader(`{"title":"x"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.PreviousValue != nil {
		t.Errorf("PreviousValue = %v, want nil for POST", rec.PreviousValue)
	}
	query, ok := rec.Metadata["query"].(map[string]any)
	if !ok {
		t.Fatalf("metadata query is %T, want map", rec.Metadata["query"])
	}
	if query["draft"] != "true" {
		t.Errorf("query draft = %v, want true", query["draft"])
	}
}

func TestCapture_ErrorResponseMetadata(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Put("/api/v1/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"post not found"}}`))
		})
	}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/posts/99", strings.NewReader(`{"title":"x"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.Metadata["status"] != audit.StatusError {
		t.Errorf("status = %v, want error", rec.Metadata["status"])
	}
	if rec.Metadata["status_code"] != http.StatusNotFound {
		t.Errorf("status_code = %v, want 404", rec.Metadata["status_code"])
	}
	if rec.Metadata["error_message"] != "post not found" {
		t.Errorf("error_message = %v", rec.Metadata["error_message"])
	}
	if rec.Metadata["error_code"] != "NOT_FOUND" {
		t.Errorf("error_code = %v", rec.Metadata["error_code"])
	}
}

func TestCapture_BearerIdentityAttributed(t *testing.T) {
	t.Parallel()

	submitter, router := setupCapture(t, func(r chi.Router) {
		r.Get("/api/v1/posts", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}, nil)

	// Unsigned token with sub=u1 and email claim; identity extraction does
	// not verify signatures.
	token := unsignedToken(t, map[string]any{
		"sub":   "u1",
		"email": "alice@example.com",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := submitter.wait(t)
	if rec.ActorID != "u1" {
		t.Errorf("ActorID = %q, want u1", rec.ActorID)
	}
	if rec.ActorEmail != "alice@example.com" {
		t.Errorf("ActorEmail = %q", rec.ActorEmail)
	}
}

func TestInferAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		path   string
		want   audit.ActionType
	}{
		{http.MethodPost, "/api/v1/posts", audit.ActionCreate},
		{http.MethodPut, "/api/v1/posts/1", audit.ActionUpdate},
		{http.MethodPatch, "/api/v1/posts/1", audit.ActionUpdate},
		{http.MethodDelete, "/api/v1/posts/1", audit.ActionDelete},
		{http.MethodGet, "/api/v1/posts", audit.ActionAccess},
		{http.MethodPost, "/api/v1/auth/login", audit.ActionLogin},
		{http.MethodPost, "/api/v1/auth/logout", audit.ActionLogout},
		{http.MethodPost, "/api/v1/auth/password/reset", audit.ActionPasswordReset},
		{http.MethodPut, "/api/v1/users/me/password", audit.ActionPasswordChange},
		{http.MethodPost, "/api/v1/auth/register", audit.ActionCreate},
	}

	for _, tc := range tests {
		if got := inferAction(tc.method, tc.path); got != tc.want {
			t.Errorf("inferAction(%s %s) = %q, want %q", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestInferResource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/posts/42", "posts"},
		{"/api/v1/users", "users"},
		{"/api/v1", "root"},
		{"/other/route", "other"},
	}

	for _, tc := range tests {
		if got := inferResource(tc.path, "/api/v1"); got != tc.want {
			t.Errorf("inferResource(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
