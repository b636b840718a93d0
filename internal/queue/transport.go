// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package queue

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// PubSub pairs the publisher and subscriber ends of one transport.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewGoChannelPubSub creates the default in-process transport.
//
// GoChannel gives at-least-once delivery within the process: the consumer
// router acks only after the handler succeeds, and failed handlers are
// retried by router middleware. Durability across restarts requires the NATS
// transport (-tags nats).
func NewGoChannelPubSub(cfg Config, logger watermill.LoggerAdapter) *PubSub {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, logger)

	return &PubSub{Publisher: ch, Subscriber: ch}
}
