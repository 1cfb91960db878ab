// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package messaging is the publish/subscribe bus the signer uses for data
// store chunks, operator commands and round results.
package messaging

import (
	"time"

	"github.com/nats-io/nats.go"
)

// PubSub is implemented by the NATS bus and by the in-process bus.
type PubSub interface {
	Publish(topic string, data []byte) error
	Subscribe(topic string, handler func(msg *nats.Msg)) (Subscription, error)
	// Flush blocks until published messages have left the client.
	Flush(timeout time.Duration) error
}

// Subscription represents an active subscription
type Subscription interface {
	Unsubscribe() error
}
