package runloop

import (
	"context"

	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/stackerdb"
	"github.com/luxfi/signer/pkg/types"
)

// dispatch routes an event by the contract it came from and returns the
// outcomes of any round that finished.
func (r *RunLoop) dispatch(ctx context.Context, event *stackerdb.ChunksEvent) []types.Outcome {
	switch event.ContractID {
	case r.store.MinersContractID():
		r.handleMinerEvent(ctx, event)
		return nil
	case r.store.SignersContractID():
		return r.handleSignerEvent(ctx, event)
	default:
		r.logger.Warn().Str("contract", event.ContractID).Msg("Event from unknown contract, dropping")
		return nil
	}
}

// handleMinerEvent queues a signing round for every valid block proposal.
// Only the coordinator acts on blocks.
func (r *RunLoop) handleMinerEvent(ctx context.Context, event *stackerdb.ChunksEvent) {
	isCoordinator := committee.IsCoordinator(r.cfg.Keys, r.cfg.SignerID)
	for _, chunk := range event.ModifiedSlots {
		msg, err := message.Decode(chunk.Data)
		if err != nil {
			r.logger.Warn().Err(err).Uint32("slot", chunk.SlotID).Msg("Dropping undecodable miner chunk")
			continue
		}
		switch m := msg.(type) {
		case *message.Packet:
			r.logger.Warn().Uint32("slot", chunk.SlotID).Stringer("kind", m.Kind).Msg("Dropping packet from miners contract")
		case *message.Block:
			if !isCoordinator {
				continue
			}
			valid, err := r.node.IsValidBlock(ctx, m)
			if err != nil {
				r.logger.Warn().Err(err).Uint64("height", m.Header.Height).Msg("Block validation failed")
				valid = false
			}
			if !valid {
				r.logger.Warn().Uint64("height", m.Header.Height).Msg("Dropping invalid block")
				continue
			}
			r.logger.Info().Uint64("height", m.Header.Height).Msg("Queueing block for signing")
			r.commands.PushBack(types.SignCommand{Message: m.Serialize()})
		}
	}
}

// handleSignerEvent verifies the packets in the event, feeds the survivors
// (possibly none) to the signer and then the coordinator, relays what they
// produce and returns the coordinator's outcomes.
func (r *RunLoop) handleSignerEvent(ctx context.Context, event *stackerdb.ChunksEvent) []types.Outcome {
	_, coordinatorKey := committee.SelectCoordinator(r.cfg.Keys)

	packets := make([]*message.Packet, 0, len(event.ModifiedSlots))
	for _, chunk := range event.ModifiedSlots {
		msg, err := message.Decode(chunk.Data)
		if err != nil {
			r.logger.Debug().Err(err).Uint32("slot", chunk.SlotID).Msg("Dropping undecodable signer chunk")
			continue
		}
		pkt, ok := msg.(*message.Packet)
		if !ok {
			continue
		}
		if !pkt.Verify(r.cfg.Keys, coordinatorKey) {
			r.logger.Debug().Uint32("slot", chunk.SlotID).Uint32("sender", pkt.SignerID).Stringer("kind", pkt.Kind).Msg("Dropping packet with bad signature")
			continue
		}
		packets = append(packets, pkt)
	}
	// The capabilities run even when nothing verified so round deadlines
	// still advance.
	signerOut, err := r.signer.ProcessInboundMessages(packets)
	if err != nil {
		r.logger.Error().Err(err).Int("packets", len(packets)).Msg("Signer failed to process packets")
		signerOut = nil
	}
	coordinatorOut, outcomes, err := r.coordinator.ProcessInboundMessages(packets)
	if err != nil {
		r.logger.Error().Err(err).Int("packets", len(packets)).Msg("Coordinator failed to process packets")
		coordinatorOut, outcomes = nil, nil
	}

	for _, pkt := range append(signerOut, coordinatorOut...) {
		r.relay(ctx, pkt)
	}
	return outcomes
}

// relay writes pkt to the data store. Failures are logged only.
func (r *RunLoop) relay(ctx context.Context, pkt *message.Packet) {
	if pkt == nil {
		return
	}
	ack, err := r.store.SendMessageWithRetry(ctx, r.cfg.SignerID, pkt)
	if err != nil {
		r.logger.Error().Err(err).Stringer("kind", pkt.Kind).Msg("Failed to relay packet")
		return
	}
	if ack != nil && !ack.Accepted {
		r.logger.Warn().Stringer("kind", pkt.Kind).Str("reason", ack.Reason).Msg("Data store rejected packet")
		return
	}
	r.logger.Debug().Stringer("kind", pkt.Kind).Msg("Packet relayed")
}
