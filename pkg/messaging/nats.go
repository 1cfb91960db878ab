// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messaging

import (
	"time"

	"github.com/nats-io/nats.go"
)

type natsPubSub struct {
	conn *nats.Conn
}

// NewNATSPubSub wraps an established NATS connection.
func NewNATSPubSub(conn *nats.Conn) PubSub {
	return &natsPubSub{conn: conn}
}

func (n *natsPubSub) Publish(topic string, data []byte) error {
	return n.conn.Publish(topic, data)
}

func (n *natsPubSub) Subscribe(topic string, handler func(msg *nats.Msg)) (Subscription, error) {
	sub, err := n.conn.Subscribe(topic, handler)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (n *natsPubSub) Flush(timeout time.Duration) error {
	return n.conn.FlushTimeout(timeout)
}
