// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

// Package metrics provides Prometheus instrumentation for the audit pipeline.
//
// Exposed at /metrics in Prometheus text format. Collectors cover the write
// path (enqueue, fallback, persist, drop, dead-letter) and the retention
// sweep.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Write path

	RecordsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_enqueued_total",
		Help: "Total audit records submitted to the queue",
	})

	EnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_enqueue_failures_total",
		Help: "Total failed queue submissions (before fallback)",
	})

	FallbackWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_fallback_writes_total",
		Help: "Total direct store writes after enqueue failure",
	})

	RecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_dropped_total",
		Help: "Total records dropped after enqueue and fallback both failed",
	})

	RecordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_persisted_total",
		Help: "Total audit records written to the store by the consumer",
	})

	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audit_persist_duration_seconds",
		Help:    "Duration of consumer store writes in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_dead_lettered_total",
		Help: "Total audit jobs parked in the dead-letter queue after exhausting retries",
	})

	// Retention

	RetentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_retention_deleted_total",
		Help: "Total audit records deleted by the retention task",
	})

	RetentionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_retention_runs_total",
		Help: "Total retention sweeps by result",
	}, []string{"result"})
)

// RecordPersist records one consumer store write.
func RecordPersist(duration time.Duration) {
	RecordsPersisted.Inc()
	PersistDuration.Observe(duration.Seconds())
}

// RecordRetentionRun records one retention sweep.
func RecordRetentionRun(deleted int64, err error) {
	if err != nil {
		RetentionRuns.WithLabelValues("error").Inc()
		return
	}
	RetentionRuns.WithLabelValues("success").Inc()
	RetentionDeleted.Add(float64(deleted))
}
