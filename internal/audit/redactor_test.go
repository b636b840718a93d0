// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package audit

import (
	"reflect"
	"testing"
)

func TestIsSensitiveKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"Password", true},
		{"currentPassword", true},
		{"access_token", true},
		{"refreshToken", true},
		{"client_secret", true},
		{"api_key", true},
		{"apiKey", true},
		{"credit_card", true},
		{"ssn", true},
		{"username", false},
		{"email", false},
		{"title", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := IsSensitiveKey(tc.key); got != tc.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestRedact_SensitiveKeys(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"username": "alice",
		"password": "hunter2",
		"profile": map[string]any{
			"email":     "alice@example.com",
			"api_key":   "sk-123",
			"theme":     "dark",
			"creditTag": "gold",
		},
	}

	got := Redact(input)

	if got["password"] != RedactionMarker {
		t.Errorf("password = %v, want %q", got["password"], RedactionMarker)
	}
	if got["username"] != "alice" {
		t.Errorf("username = %v, want alice", got["username"])
	}

	profile, ok := got["profile"].(map[string]any)
	if !ok {
		t.Fatalf("profile is %T, want map", got["profile"])
	}
	if profile["api_key"] != RedactionMarker {
		t.Errorf("nested api_key = %v, want %q", profile["api_key"], RedactionMarker)
	}
	if profile["email"] != "alice@example.com" {
		t.Errorf("nested email altered: %v", profile["email"])
	}
}

func TestRedact_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"password": "hunter2",
		"nested":   map[string]any{"token": "abc"},
	}

	_ = Redact(input)

	if input["password"] != "hunter2" {
		t.Errorf("input mutated: password = %v", input["password"])
	}
	nested := input["nested"].(map[string]any)
	if nested["token"] != "abc" {
		t.Errorf("input mutated: nested token = %v", nested["token"])
	}
}

func TestRedact_Idempotent(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"password": "hunter2",
		"name":     "bob",
	}

	once := Redact(input)
	twice := Redact(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Redact not idempotent: %v != %v", once, twice)
	}
}

func TestRedact_NilAndEmpty(t *testing.T) {
	t.Parallel()

	if got := Redact(nil); got != nil {
		t.Errorf("Redact(nil) = %v, want nil", got)
	}
	if got := Redact(map[string]any{}); len(got) != 0 {
		t.Errorf("Redact(empty) = %v, want empty", got)
	}
}

func TestRedact_ArraysPassThrough(t *testing.T) {
	t.Parallel()

	// Redaction recurses into objects but not arrays; values inside an
	// array keep their original shape.
	input := map[string]any{
		"items": []any{
			map[string]any{"password": "in-array"},
			"plain",
		},
	}

	got := Redact(input)

	items, ok := got["items"].([]any)
	if !ok {
		t.Fatalf("items is %T, want slice", got["items"])
	}
	inner := items[0].(map[string]any)
	if inner["password"] != "in-array" {
		t.Errorf("array element redacted, want pass-through: %v", inner["password"])
	}
}

func TestRedact_NonStringSensitiveValues(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"token": 12345,
		"ssn":   map[string]any{"last4": "1234"},
	}

	got := Redact(input)

	if got["token"] != RedactionMarker {
		t.Errorf("numeric token = %v, want %q", got["token"], RedactionMarker)
	}
	if got["ssn"] != RedactionMarker {
		t.Errorf("object ssn = %v, want %q", got["ssn"], RedactionMarker)
	}
}

func TestRedactRecord(t *testing.T) {
	t.Parallel()

	rec := &Record{
		Action: ActionUpdate,
		PreviousValue: map[string]any{
			"password": "old",
			"name":     "bob",
		},
		NewValue: map[string]any{
			"password": "new",
		},
		Metadata: map[string]any{
			"status":  "success",
			"api_key": "sk-999",
		},
	}

	RedactRecord(rec)

	if rec.PreviousValue["password"] != RedactionMarker {
		t.Errorf("previous password = %v", rec.PreviousValue["password"])
	}
	if rec.PreviousValue["name"] != "bob" {
		t.Errorf("previous name altered: %v", rec.PreviousValue["name"])
	}
	if rec.NewValue["password"] != RedactionMarker {
		t.Errorf("new password = %v", rec.NewValue["password"])
	}
	if rec.Metadata["api_key"] != RedactionMarker {
		t.Errorf("metadata api_key = %v", rec.Metadata["api_key"])
	}
}

func TestRedactRecord_NilMaps(t *testing.T) {
	t.Parallel()

	rec := &Record{Action: ActionAccess}
	RedactRecord(rec)

	if rec.PreviousValue != nil || rec.NewValue != nil || rec.Metadata != nil {
		t.Errorf("nil maps should stay nil: %+v", rec)
	}
}
