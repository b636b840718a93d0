// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package queue

import "time"

// Config holds queue pipeline configuration.
type Config struct {
	// Topic carries audit-write jobs.
	Topic string

	// PoisonTopic receives jobs that exhausted their retry budget.
	PoisonTopic string

	// Retry policy for the consumer router. RetryMaxRetries counts retries
	// after the initial attempt, so total attempts = RetryMaxRetries + 1.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// FallbackTimeout bounds the dispatcher's direct store write after an
	// enqueue failure.
	FallbackTimeout time.Duration

	// CloseTimeout is how long to wait for in-flight handlers on shutdown.
	CloseTimeout time.Duration

	// BufferSize is the output channel buffer of the in-process transport.
	BufferSize int

	// DLQCapacity bounds the in-memory dead-letter buffer.
	DLQCapacity int

	// NATSURL is used only when built with -tags nats.
	NATSURL string
}

// DefaultConfig returns production defaults: 3 total persistence attempts
// (1 initial + 2 retries) with exponential backoff starting at 2s.
func DefaultConfig() Config {
	return Config{
		Topic:                "audit.log",
		PoisonTopic:          "audit.dlq",
		RetryMaxRetries:      2,
		RetryInitialInterval: 2 * time.Second,
		RetryMaxInterval:     30 * time.Second,
		RetryMultiplier:      2.0,
		FallbackTimeout:      5 * time.Second,
		CloseTimeout:         30 * time.Second,
		BufferSize:           256,
		DLQCapacity:          1000,
		NATSURL:              "nats://127.0.0.1:4222",
	}
}
