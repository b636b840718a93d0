// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package middleware

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/nvallette/auditrail/internal/audit"
)

// maxCaptureBytes bounds how much of a request or response body is buffered
// for audit capture. Larger bodies are truncated and recorded without values.
const maxCaptureBytes = 64 << 10

// Submitter accepts audit records for asynchronous persistence.
type Submitter interface {
	Enqueue(ctx context.Context, rec *audit.Record)
}

// Capture builds the audit capture middleware. It observes every request
// passing through it, derives an audit record from route metadata and
// verb/path inference, and submits the record after the response completes.
// Capture never alters the response and never fails the request.
func Capture(registry *Registry, submitter Submitter, apiPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqBody := bufferRequestBody(r)

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r)

			duration := time.Since(start)

			// The route pattern is only resolved once routing has run,
			// which is why the record is built after the handler returns.
			pattern := chi.RouteContext(r.Context()).RoutePattern()
			meta, _ := registry.Get(r.Method, pattern)
			if meta.Skip {
				return
			}

			record := buildRecord(r, meta, apiPrefix, reqBody, rec, duration)
			go submitter.Enqueue(context.WithoutCancel(r.Context()), record)
		})
	}
}

// buildRecord assembles the audit record for one completed request.
func buildRecord(
	r *http.Request,
	meta RouteMeta,
	apiPrefix string,
	reqBody []byte,
	rec *responseRecorder,
	duration time.Duration,
) *audit.Record {
	action := meta.Action
	if action == "" {
		action = inferAction(r.Method, r.URL.Path)
	}

	resource := meta.Resource
	if resource == "" {
		resource = inferResource(r.URL.Path, apiPrefix)
	}

	ident := GetIdentity(r.Context())

	record := &audit.Record{
		ActorID:      ident.ID,
		ActorEmail:   ident.Email,
		Action:       action,
		ResourceType: resource,
		ResourceID:   chi.URLParam(r, "id"),
		ClientIP:     clientIP(r),
		UserAgent:    r.UserAgent(),
	}

	requestPayload := decodeObject(reqBody)

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		record.NewValue = requestPayload
	}
	if r.Method != http.MethodPost {
		record.PreviousValue = paramsValue(r)
	}

	success := rec.status < http.StatusBadRequest
	responsePayload := decodeObject(rec.body.Bytes())

	if success {
		// For single-resource reads the response is the state the actor
		// observed, which is more useful than the bare URL params.
		if r.Method == http.MethodGet && record.ResourceID != "" && responsePayload != nil {
			record.PreviousValue = unwrapData(responsePayload)
		}
		if isAuthPath(r.URL.Path) {
			backfillActor(record, requestPayload, responsePayload)
		}
	}

	record.Metadata = map[string]any{
		"status":      statusLabel(success),
		"status_code": rec.status,
		"method":      r.Method,
		"path":        r.URL.Path,
		"query":       queryValues(r),
		"duration_ms": duration.Milliseconds(),
	}
	if id := GetRequestID(r.Context()); id != "" {
		record.Metadata["request_id"] = id
	}
	if !success {
		if msg, code := errorDetails(responsePayload); msg != "" || code != "" {
			record.Metadata["error_message"] = msg
			record.Metadata["error_code"] = code
		}
	}

	return record
}

// inferAction classifies the request. Authentication paths get their
// dedicated actions; everything else follows the verb.
func inferAction(method, path string) audit.ActionType {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "login"):
		return audit.ActionLogin
	case strings.Contains(lower, "logout"):
		return audit.ActionLogout
	case strings.Contains(lower, "password") && strings.Contains(lower, "reset"):
		return audit.ActionPasswordReset
	case strings.Contains(lower, "password"):
		return audit.ActionPasswordChange
	case strings.Contains(lower, "register"):
		return audit.ActionCreate
	}

	switch method {
	case http.MethodPost:
		return audit.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionAccess
	}
}

// inferResource takes the first path segment after the API prefix.
func inferResource(path, apiPrefix string) string {
	trimmed := strings.TrimPrefix(path, apiPrefix)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "root"
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

// queryValues flattens the query string into a map, keeping single values as
// strings and repeated keys as slices.
func queryValues(r *http.Request) map[string]any {
	out := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			out[key] = values[0]
		} else {
			out[key] = values
		}
	}
	return out
}

// paramsValue collects route and query parameters as the pre-state of the
// request, mirroring what the actor addressed.
func paramsValue(r *http.Request) map[string]any {
	out := queryValues(r)

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			out[key] = rctx.URLParams.Values[i]
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// isAuthPath reports whether the route is a login or registration endpoint,
// the only places actor identity is back-filled from the exchange itself.
func isAuthPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "login") || strings.Contains(lower, "register")
}

// backfillActor fills actor identity on authentication requests, where no
// bearer token exists yet. Email comes from the request body; the ID only
// exists in the response ({user:{id,email}} or a flat {id,email}).
func backfillActor(record *audit.Record, reqPayload, respPayload map[string]any) {
	if record.ActorID != "" {
		return
	}

	if email, ok := reqPayload["email"].(string); ok && record.ActorEmail == "" {
		record.ActorEmail = email
	}

	subject := respPayload
	if user, ok := respPayload["user"].(map[string]any); ok {
		subject = user
	}
	if id, ok := stringField(subject, "id"); ok {
		record.ActorID = id
	}
	if email, ok := stringField(subject, "email"); ok {
		record.ActorEmail = email
	}
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok && s != ""
}

// unwrapData returns the envelope's data object when the response uses the
// standard {status,data,...} envelope, otherwise the payload itself.
func unwrapData(payload map[string]any) map[string]any {
	if data, ok := payload["data"].(map[string]any); ok {
		return data
	}
	return payload
}

func errorDetails(payload map[string]any) (msg, code string) {
	if payload == nil {
		return "", ""
	}
	if errObj, ok := payload["error"].(map[string]any); ok {
		msg, _ = errObj["message"].(string)
		code, _ = errObj["code"].(string)
		return msg, code
	}
	msg, _ = payload["message"].(string)
	return msg, ""
}

// decodeObject parses a JSON object, returning nil for empty input,
// non-objects, or malformed JSON.
func decodeObject(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// bufferRequestBody reads up to maxCaptureBytes of the body and restores it
// so the downstream handler sees the full stream.
func bufferRequestBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxCaptureBytes+1))
	if err != nil {
		r.Body = http.NoBody
		return nil
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))

	if len(buf) > maxCaptureBytes {
		// Truncated JSON would not parse anyway; skip value capture.
		return nil
	}
	return buf
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusLabel(success bool) string {
	if success {
		return audit.StatusSuccess
	}
	return audit.StatusError
}

// responseRecorder captures the status code and up to maxCaptureBytes of the
// response body while streaming it through to the client.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (rec *responseRecorder) WriteHeader(status int) {
	if !rec.wroteHeader {
		rec.status = status
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *responseRecorder) Write(p []byte) (int, error) {
	rec.wroteHeader = true
	if rec.body.Len() < maxCaptureBytes {
		remain := maxCaptureBytes - rec.body.Len()
		if remain > len(p) {
			remain = len(p)
		}
		rec.body.Write(p[:remain])
	}
	return rec.ResponseWriter.Write(p)
}

func (rec *responseRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
