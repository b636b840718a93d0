// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/nvallette/auditrail/internal/audit"
	"github.com/nvallette/auditrail/internal/logging"
	"github.com/nvallette/auditrail/internal/metrics"
)

// Consumer dequeues audit-write jobs, applies redaction, and persists
// records to the store.
//
// Middleware order (outer to inner): Recoverer converts panics to errors,
// PoisonQueue dead-letters whatever error survives, Retry handles transient
// failures with exponential backoff. Retry sits inside PoisonQueue so a job
// reaches the dead-letter topic only after its retry budget is exhausted.
type Consumer struct {
	router    *message.Router
	store     audit.Store
	dlq       *DLQ
	cfg       Config
	poisonPub message.Publisher
}

// NewConsumer builds the consumer router and registers its handlers.
// poisonPub publishes dead-lettered jobs; it is typically the same transport
// as the subscriber.
func NewConsumer(
	pubsub *PubSub,
	store audit.Store,
	dlq *DLQ,
	cfg Config,
	logger watermill.LoggerAdapter,
) (*Consumer, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	c := &Consumer{
		router:    router,
		store:     store,
		dlq:       dlq,
		cfg:       cfg,
		poisonPub: pubsub.Publisher,
	}

	router.AddMiddleware(middleware.Recoverer)

	poison, err := middleware.PoisonQueue(pubsub.Publisher, cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	router.AddMiddleware(poison)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	router.AddConsumerHandler(
		"audit-writer",
		cfg.Topic,
		pubsub.Subscriber,
		c.handleWrite,
	)

	router.AddConsumerHandler(
		"audit-dlq-collector",
		cfg.PoisonTopic,
		pubsub.Subscriber,
		c.handleDeadLetter,
	)

	return c, nil
}

// handleWrite processes one audit-write job: deserialize, redact, persist.
//
// A permanent error (malformed payload) is published straight to the poison
// topic and acked; retrying cannot fix it. Store failures are returned so
// the retry middleware backs off and re-runs the handler, dead-lettering
// after the final attempt.
func (c *Consumer) handleWrite(msg *message.Message) error {
	rec, err := DeserializeRecord(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Malformed audit job, dead-lettering")
		c.poisonDirect(msg, err)
		return nil
	}

	audit.RedactRecord(rec)

	start := time.Now()
	if err := c.store.Create(msg.Context(), rec); err != nil {
		return NewRetryableError("persist audit record", err)
	}
	metrics.RecordPersist(time.Since(start))

	return nil
}

// poisonDirect forwards a message to the poison topic outside the middleware
// chain, used for permanent errors that must skip the retry budget.
func (c *Consumer) poisonDirect(msg *message.Message, cause error) {
	poisoned := message.NewMessage(msg.UUID, msg.Payload)
	poisoned.Metadata = msg.Metadata
	poisoned.Metadata.Set(middleware.ReasonForPoisonedKey, cause.Error())

	if err := c.poisonPub.Publish(c.cfg.PoisonTopic, poisoned); err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Failed to dead-letter malformed job")
	}
}

// handleDeadLetter retains poisoned jobs for manual inspection.
func (c *Consumer) handleDeadLetter(msg *message.Message) error {
	entry := DeadLetter{
		MessageID:  msg.UUID,
		Payload:    append([]byte(nil), msg.Payload...),
		Reason:     msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		OccurredAt: time.Now().UTC(),
	}
	c.dlq.Add(entry)
	metrics.DeadLettered.Inc()

	logging.Error().
		Str("message_id", entry.MessageID).
		Str("reason", entry.Reason).
		Msg("Audit job dead-lettered")

	return nil
}

// Run starts the consumer and blocks until context cancellation or Close.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running returns a channel that closes once the router is running.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// Close gracefully stops the consumer, waiting up to CloseTimeout for
// in-flight jobs.
func (c *Consumer) Close() error {
	return c.router.Close()
}
