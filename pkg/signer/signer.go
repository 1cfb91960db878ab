// Package signer drives a run loop from a single goroutine, feeding it
// data store events and operator commands.
package signer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/stackerdb"
	"github.com/luxfi/signer/pkg/types"
)

const (
	defaultCommandBuffer = 16
	defaultResultBuffer  = 16
)

// Loop is the part of the run loop the driver needs.
type Loop interface {
	RunOnePass(ctx context.Context, event *stackerdb.ChunksEvent, cmd types.Command, results chan<- []types.Outcome) error
	EventTimeout() time.Duration
}

type Signer struct {
	loop     Loop
	events   <-chan *stackerdb.ChunksEvent
	commands chan types.Command
	results  chan []types.Outcome
	logger   zerolog.Logger
}

func New(loop Loop, events <-chan *stackerdb.ChunksEvent, log zerolog.Logger) *Signer {
	return &Signer{
		loop:     loop,
		events:   events,
		commands: make(chan types.Command, defaultCommandBuffer),
		results:  make(chan []types.Outcome, defaultResultBuffer),
		logger:   log.With().Str("component", "signer").Logger(),
	}
}

// Submit queues an operator command for the next pass.
func (s *Signer) Submit(ctx context.Context, cmd types.Command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results carries one batch per finished round.
func (s *Signer) Results() <-chan []types.Outcome {
	return s.results
}

// RunningSigner is a handle on a spawned driver goroutine.
type RunningSigner struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Spawn starts the driver. Passes run one at a time on a single goroutine.
func (s *Signer) Spawn(ctx context.Context) *RunningSigner {
	ctx, cancel := context.WithCancel(ctx)
	running := &RunningSigner{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(running.done)
		err := s.run(ctx)
		running.mu.Lock()
		running.err = err
		running.mu.Unlock()
	}()
	return running
}

func (s *Signer) run(ctx context.Context) error {
	s.logger.Info().Msg("Signer started")
	defer s.logger.Info().Msg("Signer stopped")

	events := s.events
	for {
		var (
			event *stackerdb.ChunksEvent
			cmd   types.Command
		)
		timer := time.NewTimer(s.loop.EventTimeout())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case cmd = <-s.commands:
		case ev, ok := <-events:
			if !ok {
				s.logger.Warn().Msg("Event source closed")
				events = nil
			}
			event = ev
		case <-timer.C:
		}
		timer.Stop()

		if err := s.loop.RunOnePass(ctx, event, cmd, s.results); err != nil {
			s.logger.Error().Err(err).Msg("Run loop failed")
			return err
		}
	}
}

// Stop cancels the driver and waits for it to exit.
func (r *RunningSigner) Stop() error {
	r.cancel()
	return r.Wait()
}

// Wait blocks until the driver exits and returns its fatal error, if any.
func (r *RunningSigner) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done is closed when the driver exits.
func (r *RunningSigner) Done() <-chan struct{} {
	return r.done
}
