// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

// Package config loads layered application configuration with Koanf v2:
// struct defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Audit      AuditConfig      `koanf:"audit"`
	Queue      QueueConfig      `koanf:"queue"`
	TokenStore TokenStoreConfig `koanf:"token_store"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP on the read API.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path to the DuckDB file; ":memory:" for an ephemeral store.
	Path string `koanf:"path"`
}

// AuditConfig controls the audit pipeline.
type AuditConfig struct {
	// Enabled globally disables the write path when false.
	// The retention sweep runs regardless, so records written before
	// disablement are still pruned.
	Enabled bool `koanf:"enabled"`

	// RetentionDays is the horizon for the retention task.
	RetentionDays int `koanf:"retention_days"`

	// CleanupInterval is how often the retention task runs.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// QueueConfig controls the audit-write queue.
type QueueConfig struct {
	// Topic carries audit-write jobs; PoisonTopic receives dead-lettered jobs.
	Topic       string `koanf:"topic"`
	PoisonTopic string `koanf:"poison_topic"`

	// Retry policy applied by the consumer router. RetryMaxRetries counts
	// retries after the initial attempt; the default of 2 gives 3 total
	// persistence attempts per job.
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// FallbackTimeout bounds the direct store write attempted when
	// enqueueing fails.
	FallbackTimeout time.Duration `koanf:"fallback_timeout"`

	CloseTimeout time.Duration `koanf:"close_timeout"`

	// BufferSize is the output channel buffer of the in-process transport.
	BufferSize int `koanf:"buffer_size"`

	// DLQCapacity bounds the in-memory dead-letter buffer.
	DLQCapacity int `koanf:"dlq_capacity"`

	// NATS settings apply only when built with -tags nats.
	NATSURL string `koanf:"nats_url"`
}

// TokenStoreConfig holds the transient-token store settings.
type TokenStoreConfig struct {
	// Path to the Badger directory; empty selects in-memory mode.
	Path string `koanf:"path"`

	// TTL applied to stored tokens.
	TTL time.Duration `koanf:"ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "/data/auditrail.duckdb",
		},
		Audit: AuditConfig{
			Enabled:         true,
			RetentionDays:   90,
			CleanupInterval: 24 * time.Hour,
		},
		Queue: QueueConfig{
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
		},
		TokenStore: TokenStoreConfig{
			Path: "/data/tokens",
			TTL:  time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit.retention_days must be positive, got %d", c.Audit.RetentionDays)
	}
	if c.Audit.CleanupInterval <= 0 {
		return fmt.Errorf("audit.cleanup_interval must be positive, got %s", c.Audit.CleanupInterval)
	}
	if c.Queue.RetryMaxRetries < 0 {
		return fmt.Errorf("queue.retry_max_retries must be non-negative, got %d", c.Queue.RetryMaxRetries)
	}
	if c.Queue.RetryMultiplier < 1 {
		return fmt.Errorf("queue.retry_multiplier must be >= 1, got %f", c.Queue.RetryMultiplier)
	}
	if c.Queue.Topic == "" || c.Queue.PoisonTopic == "" {
		return fmt.Errorf("queue.topic and queue.poison_topic must be set")
	}
	if c.Queue.Topic == c.Queue.PoisonTopic {
		return fmt.Errorf("queue.topic and queue.poison_topic must differ")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	return nil
}
