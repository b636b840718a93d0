// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

// Package main is the entry point for the Auditrail server.
//
// Auditrail records who did what, to which resource, and when - asynchronously,
// so audit persistence never sits on the request path. Every request passing
// through the capture middleware becomes an audit record that is enqueued,
// redacted, and persisted to DuckDB by a background consumer.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, config.yaml, env vars)
//  2. Database: DuckDB audit record store
//  3. Token store: BadgerDB TTL store for transient flow tokens
//  4. Queue: Watermill transport (GoChannel, or NATS JetStream with -tags nats),
//     dispatcher and consumer router with retry and dead-lettering
//  5. Retention: daily pruning of records past the retention horizon
//  6. HTTP server: read API, health, and Prometheus metrics
//
// # Configuration
//
// All settings accept environment overrides with the AUDITRAIL_ prefix, e.g.:
//
//	export AUDITRAIL_SERVER_PORT=8080
//	export AUDITRAIL_DATABASE_PATH=/data/auditrail.duckdb
//	export AUDITRAIL_AUDIT_RETENTION_DAYS=90
//	export AUDITRAIL_AUDIT_ENABLED=true
//
// # Build Tags
//
//	go build ./cmd/server             # In-process queue (GoChannel)
//	go build -tags nats ./cmd/server  # NATS JetStream queue
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops accepting
// connections, drains in-flight requests, closes the consumer router (waiting
// for in-flight audit jobs), and finally closes the stores.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nvallette/auditrail/internal/api"
	"github.com/nvallette/auditrail/internal/audit"
	"github.com/nvallette/auditrail/internal/config"
	"github.com/nvallette/auditrail/internal/logging"
	"github.com/nvallette/auditrail/internal/middleware"
	"github.com/nvallette/auditrail/internal/queue"
	"github.com/nvallette/auditrail/internal/retention"
	"github.com/nvallette/auditrail/internal/tokenstore"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Bool("audit_enabled", cfg.Audit.Enabled).
		Msg("Starting Auditrail")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database.
	db, err := sql.Open("duckdb", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	store := audit.NewDuckDBStore(db)
	if err := store.CreateTable(ctx); err != nil {
		return fmt.Errorf("initialize audit schema: %w", err)
	}

	// Token store.
	tokens, err := tokenstore.Open(cfg.TokenStore.Path, cfg.TokenStore.TTL)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer tokens.Close()

	// Queue pipeline.
	qcfg := queueConfig(cfg.Queue)
	wmLogger := logging.NewWatermillAdapter()

	pubsub, err := openTransport(qcfg, wmLogger)
	if err != nil {
		return fmt.Errorf("open queue transport: %w", err)
	}

	dlq := queue.NewDLQ(qcfg.DLQCapacity)

	consumer, err := queue.NewConsumer(pubsub, store, dlq, qcfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logging.Error().Err(err).Msg("Consumer router stopped with error")
		}
	}()
	<-consumer.Running()

	dispatcher := queue.NewDispatcher(pubsub.Publisher, store, qcfg, cfg.Audit.Enabled)

	// Retention.
	retainer := retention.New(store, cfg.Audit.RetentionDays, cfg.Audit.CleanupInterval)
	go retainer.Run(ctx)

	// HTTP server.
	handlers := api.NewAuditHandlers(store, dlq)
	router := api.NewRouter(api.RouterDeps{
		Handlers:  handlers,
		Submitter: dispatcher,
		Registry:  middleware.NewRegistry(),
		Server:    cfg.Server,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.CloseTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP shutdown failed")
	}

	if err := dispatcher.Close(); err != nil {
		logging.Error().Err(err).Msg("Dispatcher close failed")
	}
	if err := consumer.Close(); err != nil {
		logging.Error().Err(err).Msg("Consumer close failed")
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}

// queueConfig maps the application configuration onto the queue package.
func queueConfig(qc config.QueueConfig) queue.Config {
	return queue.Config{
		Topic:                qc.Topic,
		PoisonTopic:          qc.PoisonTopic,
		RetryMaxRetries:      qc.RetryMaxRetries,
		RetryInitialInterval: qc.RetryInitialInterval,
		RetryMaxInterval:     qc.RetryMaxInterval,
		RetryMultiplier:      qc.RetryMultiplier,
		FallbackTimeout:      qc.FallbackTimeout,
		CloseTimeout:         qc.CloseTimeout,
		BufferSize:           qc.BufferSize,
		DLQCapacity:          qc.DLQCapacity,
		NATSURL:              qc.NATSURL,
	}
}

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func init() {
	if v := os.Getenv("AUDITRAIL_VERSION"); v != "" {
		version = v
	}
}
