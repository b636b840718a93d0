// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package queue

import (
	"github.com/goccy/go-json"

	"github.com/nvallette/auditrail/internal/audit"
)

// SerializeRecord encodes an audit record for transport.
func SerializeRecord(rec *audit.Record) ([]byte, error) {
	if rec == nil {
		return nil, NewPermanentError("cannot serialize nil record", nil)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, NewPermanentError("marshal audit record", err)
	}
	return data, nil
}

// DeserializeRecord decodes a transported audit record.
// A malformed payload is a PermanentError: retrying cannot fix it, so the
// consumer dead-letters it immediately.
func DeserializeRecord(data []byte) (*audit.Record, error) {
	if len(data) == 0 {
		return nil, NewPermanentError("empty payload", nil)
	}
	var rec audit.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, NewPermanentError("unmarshal audit record", err)
	}
	return &rec, nil
}
