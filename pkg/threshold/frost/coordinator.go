package frost

import (
	"bytes"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/threshold"
	"github.com/luxfi/signer/pkg/types"
)

// coordinator opens rounds and turns the committee's reports into
// outcomes. It shares the local participant so a finished signature can be
// read without another exchange.
type coordinator struct {
	cfg    threshold.EngineConfig
	local  *participant
	logger zerolog.Logger
	now    func() time.Time

	round     roundKind
	session   []byte
	started   time.Time
	digest    []byte
	taproot   bool
	dkgKeys   map[uint32][]byte
	aggregate *secp256k1.PublicKey
}

func newCoordinator(cfg threshold.EngineConfig, local *participant) *coordinator {
	return &coordinator{
		cfg:    cfg,
		local:  local,
		logger: local.logger.With().Str("role", "coordinator").Logger(),
		now:    time.Now,
	}
}

func (c *coordinator) begin(kind roundKind) {
	id := uuid.New()
	c.round = kind
	c.session = id[:]
	c.started = c.now()
	c.dkgKeys = make(map[uint32][]byte)
}

func (c *coordinator) StartDkgRound() (*message.Packet, error) {
	c.begin(roundDkg)
	c.logger.Info().Hex("session", c.session).Msg("Opening DKG round")
	return newPacket(message.KindDkgBegin, c.cfg.SignerID, c.cfg.PrivateKey, envelope{Session: c.session})
}

func (c *coordinator) StartSigningRound(msg []byte, isTaproot bool, merkleRoot *[32]byte) (*message.Packet, error) {
	if c.aggregate == nil {
		return nil, ErrNoAggregateKey
	}
	digest := signingDigest(msg, merkleRoot)
	req, err := cbor.Marshal(signRequest{Digest: digest, Taproot: isTaproot})
	if err != nil {
		return nil, err
	}
	c.begin(roundSign)
	c.digest = digest
	c.taproot = isTaproot
	c.logger.Info().Hex("session", c.session).Hex("digest", digest).Bool("taproot", isTaproot).Msg("Opening signing round")
	return newPacket(message.KindNonceRequest, c.cfg.SignerID, c.cfg.PrivateKey, envelope{Session: c.session, Payload: req})
}

func (c *coordinator) ProcessInboundMessages(packets []*message.Packet) ([]*message.Packet, []types.Outcome, error) {
	if c.round == roundNone {
		return nil, nil, nil
	}
	for _, pkt := range packets {
		if outcome := c.collect(pkt); outcome != nil {
			return nil, c.finish(outcome), nil
		}
	}

	var outcome types.Outcome
	switch c.round {
	case roundDkg:
		outcome = c.dkgOutcome()
	case roundSign:
		outcome = c.signOutcome()
	}
	if outcome == nil && c.expired() {
		reason := fmt.Sprintf("%s round timed out after %s", c.round, c.now().Sub(c.started).Round(time.Millisecond))
		if c.round == roundDkg {
			outcome = types.DkgFailed{Reason: reason}
		} else {
			outcome = types.SignFailed{Reason: reason}
		}
	}
	if outcome == nil {
		return nil, nil, nil
	}
	return nil, c.finish(outcome), nil
}

// collect records a report for the open round. A reported failure ends
// the round immediately.
func (c *coordinator) collect(pkt *message.Packet) types.Outcome {
	switch {
	case c.round == roundDkg && pkt.Kind == message.KindDkgEnd:
	case c.round == roundSign && pkt.Kind == message.KindSignatureShareResponse:
	default:
		return nil
	}
	env, err := decodeEnvelope(pkt.Body)
	if err != nil || !bytes.Equal(env.Session, c.session) {
		return nil
	}
	if env.Error != "" {
		reason := fmt.Sprintf("signer %d: %s", pkt.SignerID, env.Error)
		if c.round == roundDkg {
			return types.DkgFailed{Reason: reason}
		}
		return types.SignFailed{Reason: reason}
	}
	if c.round == roundDkg {
		c.dkgKeys[pkt.SignerID] = env.Payload
	}
	return nil
}

// dkgOutcome is nil until every signer has reported the same key.
func (c *coordinator) dkgOutcome() types.Outcome {
	if uint32(len(c.dkgKeys)) < c.cfg.Keys.TotalSigners() {
		return nil
	}
	var key []byte
	for id, k := range c.dkgKeys {
		if key == nil {
			key = k
			continue
		}
		if !bytes.Equal(key, k) {
			return types.DkgFailed{Reason: fmt.Sprintf("signer %d reported a different aggregate key", id)}
		}
	}
	pub, err := schnorr.ParsePubKey(key)
	if err != nil {
		return types.DkgFailed{Reason: fmt.Sprintf("invalid aggregate key: %v", err)}
	}
	c.aggregate = pub
	return types.DkgKey{Key: pub}
}

func (c *coordinator) signOutcome() types.Outcome {
	sig, done, err := c.local.signature(c.session)
	if !done {
		return nil
	}
	if err != nil {
		return types.SignFailed{Reason: err.Error()}
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return types.SignFailed{Reason: fmt.Sprintf("malformed signature: %v", err)}
	}
	if !parsed.Verify(c.digest, c.aggregate) {
		return types.SignFailed{Reason: "signature does not verify under the aggregate key"}
	}
	if c.taproot {
		return types.TaprootProof{R: sig[:32], S: sig[32:]}
	}
	return types.Signature{R: sig[:32], Z: sig[32:]}
}

func (c *coordinator) expired() bool {
	var limit time.Duration
	switch c.round {
	case roundDkg:
		limit = c.cfg.DkgPublicTimeout + c.cfg.DkgEndTimeout
	case roundSign:
		limit = c.cfg.NonceTimeout + c.cfg.SignTimeout
	}
	return limit > 0 && c.now().Sub(c.started) > limit
}

func (c *coordinator) finish(outcome types.Outcome) []types.Outcome {
	c.logger.Info().Hex("session", c.session).Str("outcome", outcome.OutcomeKind()).Msg("Round closed")
	c.Reset()
	return []types.Outcome{outcome}
}

func (c *coordinator) Reset() {
	c.round = roundNone
	c.session = nil
	c.digest = nil
	c.dkgKeys = nil
}

func (c *coordinator) SetAggregatePublicKey(key *secp256k1.PublicKey) {
	c.aggregate = key
}
