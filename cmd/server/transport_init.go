// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

//go:build !nats

package main

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/nvallette/auditrail/internal/queue"
)

// openTransport selects the in-process GoChannel queue. Build with
// -tags nats for a NATS JetStream transport instead.
func openTransport(cfg queue.Config, logger watermill.LoggerAdapter) (*queue.PubSub, error) {
	return queue.NewGoChannelPubSub(cfg, logger), nil
}
