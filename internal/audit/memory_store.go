// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	maxLen  int

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		records: make([]Record, 0, maxLen),
		maxLen:  maxLen,
		now:     time.Now,
	}
}

// Create persists a record, assigning ID and CreatedAt if unset.
func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.Action == "" {
		rec.Action = ActionCustom
	}

	// Enforce max length by evicting the oldest 10%.
	if len(s.records) >= s.maxLen {
		s.records = s.records[s.maxLen/10:]
	}

	s.records = append(s.records, *rec)
	return nil
}

// GetByID returns the record with the given ID, or ErrNotFound.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].ID == id {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// FindByActor lists records for one actor ID.
func (s *MemoryStore) FindByActor(ctx context.Context, actorID string, opts ListOptions) (*Page, error) {
	return s.find(opts, func(r *Record) bool { return r.ActorID == actorID })
}

// FindByAction lists records with one action type.
func (s *MemoryStore) FindByAction(ctx context.Context, action ActionType, opts ListOptions) (*Page, error) {
	return s.find(opts, func(r *Record) bool { return r.Action == action })
}

// FindByResource lists records for a resource type, optionally narrowed to a
// single resource ID.
func (s *MemoryStore) FindByResource(ctx context.Context, resourceType, resourceID string, opts ListOptions) (*Page, error) {
	return s.find(opts, func(r *Record) bool {
		if r.ResourceType != resourceType {
			return false
		}
		return resourceID == "" || r.ResourceID == resourceID
	})
}

// FindByDateRange lists records with start <= CreatedAt < end.
func (s *MemoryStore) FindByDateRange(ctx context.Context, start, end time.Time, opts ListOptions) (*Page, error) {
	return s.find(opts, func(r *Record) bool {
		return !r.CreatedAt.Before(start) && r.CreatedAt.Before(end)
	})
}

// FindAll lists all records.
func (s *MemoryStore) FindAll(ctx context.Context, opts ListOptions) (*Page, error) {
	return s.find(opts, func(*Record) bool { return true })
}

// find collects matches ordered by CreatedAt descending and paginates.
func (s *MemoryStore) find(opts ListOptions, match func(*Record) bool) (*Page, error) {
	opts = opts.normalize()

	s.mu.RLock()
	var matched []Record
	for i := range s.records {
		if match(&s.records[i]) {
			matched = append(matched, s.records[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if opts.Offset >= len(matched) {
		return &Page{Records: []Record{}, Total: total}, nil
	}

	end := opts.Offset + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return &Page{Records: matched[opts.Offset:end], Total: total}, nil
}

// DeleteOlderThan removes records created strictly before the cutoff.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for i := range s.records {
		if s.records[i].CreatedAt.Before(cutoff) {
			deleted++
		} else {
			kept = append(kept, s.records[i])
		}
	}
	s.records = kept
	return deleted, nil
}

// Len returns the number of records in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records (for testing).
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}
