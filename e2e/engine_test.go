package e2e

import (
	"fmt"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/runloop"
	"github.com/luxfi/signer/pkg/threshold"
	"github.com/luxfi/signer/pkg/types"
	"github.com/luxfi/signer/pkg/utils"
)

// echoEngine is a toy threshold engine: every round completes once each
// committee member has answered the coordinator. It produces no real
// cryptography, only a protocol-shaped exchange of signed packets.
type echoEngine struct{}

func (echoEngine) Name() string { return "echo" }

func (echoEngine) New(cfg threshold.EngineConfig) (runloop.Coordinator, runloop.Signer, error) {
	return &echoCoordinator{cfg: cfg}, &echoSigner{cfg: cfg}, nil
}

func signed(cfg threshold.EngineConfig, kind message.PacketKind, body []byte) *message.Packet {
	pkt := &message.Packet{Kind: kind, SignerID: cfg.SignerID, Body: body}
	pkt.Sign(cfg.PrivateKey)
	return pkt
}

type echoSigner struct {
	cfg threshold.EngineConfig
}

func (s *echoSigner) ProcessInboundMessages(packets []*message.Packet) ([]*message.Packet, error) {
	var out []*message.Packet
	for _, pkt := range packets {
		switch pkt.Kind {
		case message.KindDkgBegin:
			out = append(out, signed(s.cfg, message.KindDkgEnd, s.cfg.PrivateKey.PubKey().SerializeCompressed()))
		case message.KindNonceRequest:
			out = append(out, signed(s.cfg, message.KindNonceResponse, pkt.Body))
		case message.KindSignatureShareRequest:
			share := utils.Sha256(pkt.Body, []byte(fmt.Sprint(s.cfg.SignerID)))
			out = append(out, signed(s.cfg, message.KindSignatureShareResponse, share))
		}
	}
	return out, nil
}

type round uint8

const (
	roundNone round = iota
	roundDkg
	roundNonce
	roundShares
)

type echoCoordinator struct {
	cfg       threshold.EngineConfig
	round     round
	message   []byte
	taproot   bool
	responses map[uint32][]byte
	aggregate *secp256k1.PublicKey
}

func (c *echoCoordinator) begin(r round) {
	c.round = r
	c.responses = make(map[uint32][]byte)
}

func (c *echoCoordinator) StartDkgRound() (*message.Packet, error) {
	c.begin(roundDkg)
	return signed(c.cfg, message.KindDkgBegin, nil), nil
}

func (c *echoCoordinator) StartSigningRound(msg []byte, isTaproot bool, _ *[32]byte) (*message.Packet, error) {
	if c.aggregate == nil {
		return nil, fmt.Errorf("no aggregate key")
	}
	c.begin(roundNonce)
	c.message = msg
	c.taproot = isTaproot
	return signed(c.cfg, message.KindNonceRequest, msg), nil
}

func (c *echoCoordinator) ProcessInboundMessages(packets []*message.Packet) ([]*message.Packet, []types.Outcome, error) {
	want := map[round]message.PacketKind{
		roundDkg:    message.KindDkgEnd,
		roundNonce:  message.KindNonceResponse,
		roundShares: message.KindSignatureShareResponse,
	}[c.round]
	for _, pkt := range packets {
		if c.round != roundNone && pkt.Kind == want {
			c.responses[pkt.SignerID] = pkt.Body
		}
	}
	if c.round == roundNone || uint32(len(c.responses)) < c.cfg.Keys.TotalSigners() {
		return nil, nil, nil
	}

	switch c.round {
	case roundDkg:
		c.round = roundNone
		c.aggregate = c.cfg.PrivateKey.PubKey()
		return nil, []types.Outcome{types.DkgKey{Key: c.aggregate}}, nil
	case roundNonce:
		c.begin(roundShares)
		return []*message.Packet{signed(c.cfg, message.KindSignatureShareRequest, c.message)}, nil, nil
	default:
		c.round = roundNone
		ids := make([]int, 0, len(c.responses))
		for id := range c.responses {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		var shares [][]byte
		for _, id := range ids {
			shares = append(shares, c.responses[uint32(id)])
		}
		r := utils.Sha256(c.message)
		z := utils.Sha256(shares...)
		if c.taproot {
			return nil, []types.Outcome{types.TaprootProof{R: r, S: z}}, nil
		}
		return nil, []types.Outcome{types.Signature{R: r, Z: z}}, nil
	}
}

func (c *echoCoordinator) Reset() { c.round = roundNone }

func (c *echoCoordinator) SetAggregatePublicKey(key *secp256k1.PublicKey) { c.aggregate = key }
