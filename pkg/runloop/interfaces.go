package runloop

import (
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/stackerdb"
	"github.com/luxfi/signer/pkg/types"
)

// NodeClient queries the node for chain state.
type NodeClient interface {
	// GetAggregatePublicKey returns nil when no key has been published.
	GetAggregatePublicKey(ctx context.Context) (*secp256k1.PublicKey, error)
	IsValidBlock(ctx context.Context, block *message.Block) (bool, error)
}

// DataStore relays messages to the rest of the committee.
type DataStore interface {
	SendMessageWithRetry(ctx context.Context, signerID uint32, msg message.Message) (*stackerdb.Ack, error)
	MinersContractID() string
	SignersContractID() string
}

// Coordinator drives DKG and signing rounds when this node coordinates.
type Coordinator interface {
	StartDkgRound() (*message.Packet, error)
	StartSigningRound(msg []byte, isTaproot bool, merkleRoot *[32]byte) (*message.Packet, error)
	ProcessInboundMessages(packets []*message.Packet) ([]*message.Packet, []types.Outcome, error)
	// Reset drops any partially started round.
	Reset()
	SetAggregatePublicKey(key *secp256k1.PublicKey)
}

// Signer is this node's participant in rounds.
type Signer interface {
	ProcessInboundMessages(packets []*message.Packet) ([]*message.Packet, error)
}
