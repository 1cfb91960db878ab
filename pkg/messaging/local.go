// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

var ErrClosed = errors.New("messaging: bus closed")

// LocalPubSub delivers messages synchronously to subscribers in the same
// process. Topics match exactly; wildcards are not supported.
type LocalPubSub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*localSubscription
	closed bool
}

type localSubscription struct {
	id      uint64
	topic   string
	handler func(msg *nats.Msg)
	bus     *LocalPubSub
	closed  atomic.Bool
}

func NewLocalPubSub() *LocalPubSub {
	return &LocalPubSub{subs: make(map[string]map[uint64]*localSubscription)}
}

// Publish sends a message to a topic
func (p *LocalPubSub) Publish(topic string, data []byte) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*localSubscription, 0, len(p.subs[topic]))
	for _, sub := range p.subs[topic] {
		targets = append(targets, sub)
	}
	p.mu.RUnlock()

	for _, sub := range targets {
		if sub.closed.Load() {
			continue
		}
		sub.handler(&nats.Msg{Subject: topic, Data: append([]byte(nil), data...)})
	}
	return nil
}

// Subscribe registers a handler for a topic
func (p *LocalPubSub) Subscribe(topic string, handler func(msg *nats.Msg)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.nextID++
	sub := &localSubscription{id: p.nextID, topic: topic, handler: handler, bus: p}
	if p.subs[topic] == nil {
		p.subs[topic] = make(map[uint64]*localSubscription)
	}
	p.subs[topic][sub.id] = sub
	return sub, nil
}

func (p *LocalPubSub) Flush(time.Duration) error {
	return nil
}

// Close drops every subscription; later publishes fail.
func (p *LocalPubSub) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.subs = make(map[string]map[uint64]*localSubscription)
}

// Unsubscribe stops the subscription
func (s *localSubscription) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs[s.topic], s.id)
	return nil
}
