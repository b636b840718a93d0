// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package audit

import "strings"

// RedactionMarker replaces the value of any sensitive field.
const RedactionMarker = "[REDACTED]"

// sensitiveKeySubstrings are matched against lower-cased keys by containment.
// A key matching any entry has its value replaced with RedactionMarker at any
// nesting depth.
var sensitiveKeySubstrings = []string{
	"password",
	"token",
	"secret",
	"key",
	"credit_card",
	"ssn",
}

// IsSensitiveKey reports whether a key matches the sensitive-field predicate.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range sensitiveKeySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// Redact returns a copy of the value with every sensitive field replaced by
// RedactionMarker. It is pure, idempotent, and never panics: nil input
// returns nil, scalars pass through, and only directly-nested objects are
// recursed into. Array elements are not inspected.
func Redact(value map[string]any) map[string]any {
	if value == nil {
		return nil
	}

	out := make(map[string]any, len(value))
	for key, v := range value {
		switch {
		case IsSensitiveKey(key):
			out[key] = RedactionMarker
		default:
			if nested, ok := v.(map[string]any); ok {
				out[key] = Redact(nested)
			} else {
				out[key] = v
			}
		}
	}
	return out
}

// RedactRecord scrubs the three redactable fields of a record in place.
// Called by the queue consumer before persistence; safe to call more than
// once.
func RedactRecord(rec *Record) {
	if rec == nil {
		return
	}
	rec.PreviousValue = Redact(rec.PreviousValue)
	rec.NewValue = Redact(rec.NewValue)
	rec.Metadata = Redact(rec.Metadata)
}
