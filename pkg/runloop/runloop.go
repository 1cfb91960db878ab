// Package runloop is the signer's round driver. Each pass queues an
// operator command, makes sure the node knows the aggregate key state,
// processes one batch of data store chunks and then tries to start the
// next queued round. Passes never interleave, so a node has at most one
// DKG or signing round in flight.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/common/backoff"
	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/stackerdb"
	"github.com/luxfi/signer/pkg/types"
)

var (
	ErrInitializationFailed = errors.New("runloop: initialization failed")
	errRoundNotStarted      = errors.New("runloop: round not started")
)

// RunLoop owns the round state, the command queue and the coordinator and
// signer capabilities. A single driver goroutine calls RunOnePass; only
// State may be read from elsewhere.
type RunLoop struct {
	cfg         Config
	node        NodeClient
	store       DataStore
	coordinator Coordinator
	signer      Signer

	state    atomic.Uint32
	commands *CommandQueue
	logger   zerolog.Logger
}

func New(cfg Config, node NodeClient, store DataStore, coordinator Coordinator, signer Signer, log zerolog.Logger) *RunLoop {
	cfg = cfg.withDefaults()
	return &RunLoop{
		cfg:         cfg,
		node:        node,
		store:       store,
		coordinator: coordinator,
		signer:      signer,
		commands:    NewCommandQueue(),
		logger: log.With().
			Str("component", "runloop").
			Uint32("signer_id", cfg.SignerID).
			Logger(),
	}
}

func (r *RunLoop) State() State { return State(r.state.Load()) }

// PendingCommands is the number of queued commands not yet started.
func (r *RunLoop) PendingCommands() int { return r.commands.Len() }

func (r *RunLoop) EventTimeout() time.Duration { return r.cfg.EventTimeout }

// SetEventTimeout changes how long the driver waits for input between
// passes. A zero or negative d would make the driver spin, so it is logged
// and the current timeout is kept.
func (r *RunLoop) SetEventTimeout(d time.Duration) {
	if d <= 0 {
		r.logger.Warn().Dur("requested", d).Dur("kept", r.cfg.EventTimeout).Msg("Ignoring non-positive event timeout")
		return
	}
	r.cfg.EventTimeout = d
}

// RunOnePass performs one iteration of the loop. event and cmd may be nil.
// Non-empty outcome batches are offered on results without blocking. The
// only error returned is ErrInitializationFailed, which the caller must
// treat as fatal.
func (r *RunLoop) RunOnePass(ctx context.Context, event *stackerdb.ChunksEvent, cmd types.Command, results chan<- []types.Outcome) error {
	if cmd != nil {
		r.logger.Debug().Str("command", cmd.CommandName()).Msg("Queueing command")
		r.commands.PushBack(cmd)
	}

	if r.State() == StateUninitialized {
		if err := r.initializeWithRetry(ctx); err != nil {
			return err
		}
	}

	if event != nil {
		outcomes := r.dispatch(ctx, event)
		if len(outcomes) > 0 {
			r.logger.Info().Int("outcomes", len(outcomes)).Stringer("round", r.State()).Msg("Round finished")
			r.setState(StateIdle)
			r.sendResults(results, outcomes)
		}
	}

	r.processNextCommand(ctx)
	return nil
}

func (r *RunLoop) initializeWithRetry(ctx context.Context) error {
	err := backoff.Do(ctx, r.cfg.InitPolicy, r.logger, "initialize", func() error {
		return r.initialize(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}
	return nil
}

// initialize installs a published aggregate key, or queues DKG ahead of
// everything else when none exists and this node coordinates.
func (r *RunLoop) initialize(ctx context.Context) error {
	key, err := r.node.GetAggregatePublicKey(ctx)
	if err != nil {
		return err
	}
	if key != nil {
		r.logger.Info().Msg("Aggregate public key found, skipping DKG")
		r.coordinator.SetAggregatePublicKey(key)
	} else if committee.IsCoordinator(r.cfg.Keys, r.cfg.SignerID) {
		if front, ok := r.commands.Front(); !ok || !types.IsDkg(front) {
			r.logger.Info().Msg("No aggregate public key, queueing DKG")
			r.commands.PushFront(types.DkgCommand{})
		}
	}
	r.setState(StateIdle)
	return nil
}

// processNextCommand starts the round at the head of the queue when idle.
// A command that cannot be started within the retry budget goes back to
// the head of the queue for the next pass.
func (r *RunLoop) processNextCommand(ctx context.Context) {
	if r.State() != StateIdle {
		return
	}
	cmd, ok := r.commands.PopFront()
	if !ok {
		return
	}
	err := backoff.Do(ctx, r.cfg.CommandPolicy, r.logger, "execute_command", func() error {
		if !r.executeCommand(ctx, cmd) {
			return errRoundNotStarted
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("command", cmd.CommandName()).Msg("Could not start round, requeueing")
		r.commands.PushFront(cmd)
	}
}

// executeCommand asks the coordinator to start the round and relays the
// opening packet. On failure the coordinator is reset and the state is
// left unchanged.
func (r *RunLoop) executeCommand(ctx context.Context, cmd types.Command) bool {
	var (
		pkt  *message.Packet
		next State
		err  error
	)
	switch c := cmd.(type) {
	case types.DkgCommand, *types.DkgCommand:
		pkt, err = r.coordinator.StartDkgRound()
		next = StateDkg
	case types.SignCommand:
		pkt, err = r.coordinator.StartSigningRound(c.Message, c.IsTaproot, c.MerkleRoot)
		next = StateSign
	case *types.SignCommand:
		pkt, err = r.coordinator.StartSigningRound(c.Message, c.IsTaproot, c.MerkleRoot)
		next = StateSign
	default:
		r.logger.Error().Str("type", fmt.Sprintf("%T", cmd)).Msg("Unknown command")
		return false
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("command", cmd.CommandName()).Msg("Failed to start round")
		r.coordinator.Reset()
		return false
	}

	r.relay(ctx, pkt)
	r.setState(next)
	return true
}

func (r *RunLoop) setState(s State) {
	if prev := State(r.state.Swap(uint32(s))); prev != s {
		r.logger.Debug().Stringer("from", prev).Stringer("to", s).Msg("State change")
	}
}

func (r *RunLoop) sendResults(results chan<- []types.Outcome, outcomes []types.Outcome) {
	if results == nil {
		r.logger.Warn().Int("outcomes", len(outcomes)).Msg("No result channel, dropping outcomes")
		return
	}
	select {
	case results <- outcomes:
	default:
		r.logger.Warn().Int("outcomes", len(outcomes)).Msg("Result channel full, dropping outcomes")
	}
}
