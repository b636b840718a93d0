// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

// Package retention prunes audit records past their retention window.
package retention

import (
	"context"
	"time"

	"github.com/nvallette/auditrail/internal/audit"
	"github.com/nvallette/auditrail/internal/logging"
	"github.com/nvallette/auditrail/internal/metrics"
)

// Task periodically deletes audit records older than the retention window.
// It runs regardless of whether capture is enabled, so records written while
// capture was on still age out after it is turned off.
type Task struct {
	store         audit.Store
	retentionDays int
	interval      time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New creates a retention task. retentionDays and interval must be positive;
// zero values fall back to 90 days and 24 hours.
func New(store audit.Store, retentionDays int, interval time.Duration) *Task {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Task{
		store:         store,
		retentionDays: retentionDays,
		interval:      interval,
		now:           time.Now,
	}
}

// Run executes cleanup on the configured interval until ctx is canceled.
// The first cleanup runs immediately on start. Errors are logged and the
// loop continues; a failing store never stops retention.
func (t *Task) Run(ctx context.Context) {
	logging.Info().
		Int("retention_days", t.retentionDays).
		Dur("interval", t.interval).
		Msg("Starting audit retention task")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Audit retention task stopped")
			return
		case <-ticker.C:
			t.runOnce(ctx)
		}
	}
}

// runOnce deletes everything older than the cutoff and reports the count.
func (t *Task) runOnce(ctx context.Context) {
	cutoff := t.now().UTC().AddDate(0, 0, -t.retentionDays)

	deleted, err := t.store.DeleteOlderThan(ctx, cutoff)
	metrics.RecordRetentionRun(deleted, err)
	if err != nil {
		logging.Error().Err(err).
			Time("cutoff", cutoff).
			Msg("Audit retention cleanup failed")
		return
	}

	if deleted > 0 {
		logging.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Audit retention cleanup completed")
	} else {
		logging.Debug().
			Time("cutoff", cutoff).
			Msg("Audit retention cleanup completed, nothing to delete")
	}
}
