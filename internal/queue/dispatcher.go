// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package queue

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/nvallette/auditrail/internal/audit"
	"github.com/nvallette/auditrail/internal/logging"
	"github.com/nvallette/auditrail/internal/metrics"
)

// Dispatcher enqueues audit-write jobs. Delivery is best-effort and fully
// isolated from the request path: Enqueue never returns an error to its
// caller on transient failure.
//
// Failure handling: a publish failure falls back to a bounded synchronous
// store write; if that also fails the record is logged and dropped.
type Dispatcher struct {
	publisher message.Publisher
	store     audit.Store
	cfg       Config

	// breaker sheds publish attempts while the transport is failing, so a
	// dead broker does not add publish-timeout latency to every request.
	breaker *gobreaker.CircuitBreaker[any]

	enabled bool

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher. The store is the fallback target for
// direct writes when enqueueing fails; enabled=false makes Enqueue a no-op.
func NewDispatcher(publisher message.Publisher, store audit.Store, cfg Config, enabled bool) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		store:     store,
		cfg:       cfg,
		enabled:   enabled,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name: "audit-enqueue",
		}),
	}
}

// Enqueue submits a record for asynchronous persistence.
// Fire-and-forget: all failures are handled internally.
func (d *Dispatcher) Enqueue(ctx context.Context, rec *audit.Record) {
	if !d.enabled || rec == nil {
		return
	}

	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		logging.Warn().Msg("Audit dispatcher closed, dropping record")
		metrics.RecordsDropped.Inc()
		return
	}

	data, err := SerializeRecord(rec)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to serialize audit record, dropping")
		metrics.RecordsDropped.Inc()
		return
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set("action", string(rec.Action))
	msg.Metadata.Set("resource_type", rec.ResourceType)

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.publisher.Publish(d.cfg.Topic, msg)
	})
	if err == nil {
		metrics.RecordsEnqueued.Inc()
		return
	}

	metrics.EnqueueFailures.Inc()
	logging.Warn().Err(err).
		Str("action", string(rec.Action)).
		Str("resource", rec.ResourceType).
		Msg("Failed to enqueue audit record, attempting direct write")

	d.fallbackWrite(ctx, rec)
}

// fallbackWrite persists directly when the queue is unavailable. The write
// is redacted here since it bypasses the consumer, and bounded by
// FallbackTimeout so a slow store cannot stall the caller's goroutine.
func (d *Dispatcher) fallbackWrite(ctx context.Context, rec *audit.Record) {
	audit.RedactRecord(rec)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.FallbackTimeout)
	defer cancel()

	if err := d.store.Create(writeCtx, rec); err != nil {
		logging.Error().Err(err).
			Str("action", string(rec.Action)).
			Msg("Direct audit write failed, dropping record")
		metrics.RecordsDropped.Inc()
		return
	}
	metrics.FallbackWrites.Inc()
}

// Enabled reports whether the write path is active.
func (d *Dispatcher) Enabled() bool {
	return d.enabled
}

// Close stops the dispatcher and its publisher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	return d.publisher.Close()
}
