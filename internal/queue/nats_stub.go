// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

//go:build !nats

package queue

import "github.com/ThreeDotsLabs/watermill"

// NewNATSPubSub is unavailable without the nats build tag.
func NewNATSPubSub(_ Config, _ watermill.LoggerAdapter) (*PubSub, error) {
	return nil, ErrNATSNotEnabled
}
