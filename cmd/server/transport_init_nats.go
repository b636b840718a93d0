// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

//go:build nats

package main

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/nvallette/auditrail/internal/logging"
	"github.com/nvallette/auditrail/internal/queue"
)

// openTransport connects to NATS JetStream for durable, broker-mediated
// queue delivery.
func openTransport(cfg queue.Config, logger watermill.LoggerAdapter) (*queue.PubSub, error) {
	logging.Info().Str("url", cfg.NATSURL).Msg("Using NATS JetStream queue transport")
	return queue.NewNATSPubSub(cfg, logger)
}
