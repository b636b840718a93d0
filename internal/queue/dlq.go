// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package queue

import (
	"sync"
	"time"
)

// DeadLetter is a job that exhausted its retry budget or carried a payload
// that could not be processed.
type DeadLetter struct {
	MessageID  string    `json:"messageId"`
	Payload    []byte    `json:"payload"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

// DLQ is a bounded in-memory buffer of dead-lettered jobs, exposed for
// operator inspection. When full, the oldest entry is evicted.
type DLQ struct {
	mu       sync.RWMutex
	entries  []DeadLetter
	capacity int
}

const defaultDLQCapacity = 1000

// NewDLQ creates a buffer holding at most capacity entries.
func NewDLQ(capacity int) *DLQ {
	if capacity <= 0 {
		capacity = defaultDLQCapacity
	}
	return &DLQ{
		entries:  make([]DeadLetter, 0, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, evicting the oldest when at capacity.
func (q *DLQ) Add(entry DeadLetter) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a snapshot of buffered dead letters, oldest first.
func (q *DLQ) Entries() []DeadLetter {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]DeadLetter, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len reports the number of buffered entries.
func (q *DLQ) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
