package stackerdb

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/messaging"
)

// EventReceiver turns bus traffic for the watched contracts into
// ChunksEvents. Undecodable payloads are dropped.
type EventReceiver struct {
	bus       messaging.PubSub
	contracts []string
	events    chan *ChunksEvent
	logger    zerolog.Logger

	mu     sync.Mutex
	subs   []messaging.Subscription
	closed bool
}

func NewEventReceiver(bus messaging.PubSub, contracts []string, buffer int, log zerolog.Logger) *EventReceiver {
	return &EventReceiver{
		bus:       bus,
		contracts: contracts,
		events:    make(chan *ChunksEvent, buffer),
		logger:    log.With().Str("component", "event_receiver").Logger(),
	}
}

// Events is closed by Close.
func (r *EventReceiver) Events() <-chan *ChunksEvent {
	return r.events
}

func (r *EventReceiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, contract := range r.contracts {
		subject := Subject(contract)
		sub, err := r.bus.Subscribe(subject, r.handle)
		if err != nil {
			_ = r.unsubscribeLocked()
			return err
		}
		r.subs = append(r.subs, sub)
		r.logger.Info().Str("topic", subject).Msg("Listening for chunks")
	}
	return nil
}

func (r *EventReceiver) handle(m *nats.Msg) {
	ev, err := DecodeEvent(m.Data)
	if err != nil {
		r.logger.Warn().Err(err).Str("topic", m.Subject).Msg("Dropping undecodable chunk event")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.logger.Warn().Str("contract", ev.ContractID).Msg("Event buffer full, dropping chunk event")
	}
}

func (r *EventReceiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.unsubscribeLocked()
	close(r.events)
	return err
}

func (r *EventReceiver) unsubscribeLocked() error {
	var result *multierror.Error
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.subs = nil
	return result.ErrorOrNil()
}
