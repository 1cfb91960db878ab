package frost

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/threshold/pkg/party"
	mpsProtocol "github.com/luxfi/threshold/pkg/protocol"
	"github.com/luxfi/threshold/pkg/taproot"
	mpsFrost "github.com/luxfi/threshold/protocols/frost"
	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/threshold"
)

type roundKind uint8

const (
	roundNone roundKind = iota
	roundDkg
	roundSign
)

func (k roundKind) String() string {
	switch k {
	case roundDkg:
		return "dkg"
	case roundSign:
		return "sign"
	}
	return "none"
}

// session is one handler run on this signer.
type session struct {
	id      []byte
	kind    roundKind
	handler *mpsProtocol.MultiHandler
	// flushes counts drains that produced messages. Signing sends its
	// first batch as nonce responses and the rest as share responses.
	flushes  int
	done     bool
	reported bool
	result   []byte
	err      error
}

// participant runs this signer's side of every round.
type participant struct {
	cfg     threshold.EngineConfig
	self    party.ID
	parties []party.ID
	degree  int
	share   *mpsFrost.TaprootConfig
	active  *session
	logger  zerolog.Logger
}

func newParticipant(cfg threshold.EngineConfig) (*participant, error) {
	parties := make([]party.ID, 0, cfg.Keys.TotalSigners())
	for _, id := range cfg.Keys.SignerIDs() {
		parties = append(parties, partyID(id))
	}
	slices.Sort(parties)

	share, err := loadShare(cfg.Shares, cfg.SignerID)
	if err != nil {
		return nil, err
	}
	p := &participant{
		cfg:     cfg,
		self:    partyID(cfg.SignerID),
		parties: parties,
		degree:  partyThreshold(cfg),
		share:   share,
		logger:  cfg.Logger.With().Str("component", "frost").Uint32("signer", cfg.SignerID).Logger(),
	}
	if share != nil {
		p.logger.Info().Hex("public_key", share.PublicKey).Msg("Loaded key share")
	}
	return p, nil
}

// ProcessInboundMessages feeds verified packets to the active handler and
// returns whatever the handler produced, including output left over from
// earlier passes.
func (p *participant) ProcessInboundMessages(packets []*message.Packet) ([]*message.Packet, error) {
	var out []*message.Packet
	for _, pkt := range packets {
		var (
			produced []*message.Packet
			err      error
		)
		switch pkt.Kind {
		case message.KindDkgBegin:
			produced, err = p.beginDkg(pkt)
		case message.KindNonceRequest:
			produced, err = p.beginSign(pkt)
		case message.KindDkgPublicShares, message.KindDkgPrivateShares,
			message.KindNonceResponse, message.KindSignatureShareResponse:
			produced, err = p.deliver(pkt)
		default:
			continue
		}
		if err != nil {
			p.logger.Warn().Err(err).Stringer("kind", pkt.Kind).Uint32("sender", pkt.SignerID).Msg("Dropping packet")
		}
		out = append(out, produced...)
	}
	produced, err := p.flush()
	if err != nil {
		return out, err
	}
	return append(out, produced...), nil
}

func (p *participant) beginDkg(pkt *message.Packet) ([]*message.Packet, error) {
	env, err := decodeEnvelope(pkt.Body)
	if err != nil {
		return nil, err
	}
	p.replace(env.Session)

	handler, err := mpsProtocol.NewMultiHandler(mpsFrost.KeygenTaproot(p.self, p.parties, p.degree), env.Session)
	if err != nil {
		p.active = &session{id: env.Session, kind: roundDkg, done: true, err: err}
		return p.flush()
	}
	p.active = &session{id: env.Session, kind: roundDkg, handler: handler}
	p.logger.Info().Hex("session", env.Session).Int("parties", len(p.parties)).Int("degree", p.degree).Msg("DKG started")
	return p.flush()
}

func (p *participant) beginSign(pkt *message.Packet) ([]*message.Packet, error) {
	env, err := decodeEnvelope(pkt.Body)
	if err != nil {
		return nil, err
	}
	var req signRequest
	if err := cbor.Unmarshal(env.Payload, &req); err != nil {
		return nil, fmt.Errorf("frost: decode sign request: %w", err)
	}
	p.replace(env.Session)

	if p.share == nil {
		p.active = &session{id: env.Session, kind: roundSign, done: true, err: ErrNoKeyShare}
		return p.flush()
	}
	handler, err := mpsProtocol.NewMultiHandler(mpsFrost.SignTaproot(p.share, p.parties, req.Digest), env.Session)
	if err != nil {
		p.active = &session{id: env.Session, kind: roundSign, done: true, err: err}
		return p.flush()
	}
	p.active = &session{id: env.Session, kind: roundSign, handler: handler}
	p.logger.Info().Hex("session", env.Session).Bool("taproot", req.Taproot).Msg("Signing started")
	return p.flush()
}

func (p *participant) replace(id []byte) {
	if s := p.active; s != nil && !s.done && !bytes.Equal(s.id, id) {
		p.logger.Warn().Hex("session", s.id).Stringer("round", s.kind).Msg("Abandoning unfinished round")
	}
}

// deliver hands a handler message from another signer to the active
// session.
func (p *participant) deliver(pkt *message.Packet) ([]*message.Packet, error) {
	if pkt.SignerID == p.cfg.SignerID {
		return nil, nil
	}
	env, err := decodeEnvelope(pkt.Body)
	if err != nil {
		return nil, err
	}
	s := p.active
	if s == nil || s.done || !bytes.Equal(env.Session, s.id) {
		return nil, nil
	}
	if env.Error != "" || len(env.Payload) == 0 {
		return nil, nil
	}

	payload := env.Payload
	if env.To != nil {
		if *env.To != p.cfg.SignerID {
			return nil, nil
		}
		sender, err := p.cfg.Keys.PublicKey(pkt.SignerID)
		if err != nil {
			return nil, err
		}
		if payload, err = open(p.cfg.PrivateKey, sender, s.id, env.Payload, env.Nonce); err != nil {
			return nil, fmt.Errorf("frost: open directed message: %w", err)
		}
	}

	msg := &mpsProtocol.Message{}
	if err := msg.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("frost: decode handler message: %w", err)
	}
	if msg.From != partyID(pkt.SignerID) {
		return nil, fmt.Errorf("frost: message from %q relayed by signer %d", msg.From, pkt.SignerID)
	}
	if !s.handler.CanAccept(msg) {
		return nil, fmt.Errorf("frost: handler rejected message from %q", msg.From)
	}
	s.handler.Accept(msg)
	return p.flush()
}

// flush drains the active handler without blocking, wraps its messages
// and reports the end of the round once.
func (p *participant) flush() ([]*message.Packet, error) {
	s := p.active
	if s == nil || s.reported {
		return nil, nil
	}

	var out []*message.Packet
	if !s.done {
		msgs, closed := drain(s.handler)
		for _, m := range msgs {
			pkt, err := p.wrap(s, m)
			if err != nil {
				return out, err
			}
			out = append(out, pkt)
		}
		if len(msgs) > 0 {
			s.flushes++
		}
		if closed {
			s.done = true
			p.finish(s)
		}
	}
	if !s.done {
		return out, nil
	}

	s.reported = true
	report, err := p.report(s)
	if err != nil {
		return out, err
	}
	if report != nil {
		out = append(out, report)
	}
	return out, nil
}

func drain(h *mpsProtocol.MultiHandler) (msgs []*mpsProtocol.Message, closed bool) {
	for {
		select {
		case m, ok := <-h.Listen():
			if !ok {
				return msgs, true
			}
			msgs = append(msgs, m)
		default:
			return msgs, false
		}
	}
}

// finish records the handler result on s.
func (p *participant) finish(s *session) {
	res, err := s.handler.Result()
	if err != nil {
		s.err = err
		return
	}
	switch s.kind {
	case roundDkg:
		cfg, ok := res.(*mpsFrost.TaprootConfig)
		if !ok {
			s.err = fmt.Errorf("%w: %T", ErrUnexpectedValue, res)
			return
		}
		p.share = cfg
		s.result = cfg.PublicKey
		if err := saveShare(p.cfg.Shares, p.cfg.SignerID, cfg); err != nil {
			p.logger.Error().Err(err).Msg("Failed to persist key share")
		}
		p.logger.Info().Hex("public_key", cfg.PublicKey).Msg("DKG complete")
	case roundSign:
		sig, ok := res.(taproot.Signature)
		if !ok {
			s.err = fmt.Errorf("%w: %T", ErrUnexpectedValue, res)
			return
		}
		s.result = sig
		p.logger.Info().Hex("session", s.id).Msg("Signing complete")
	}
}

// report is the packet announcing how this signer's round ended. A
// successful signing round needs none; the coordinator reads its local
// result.
func (p *participant) report(s *session) (*message.Packet, error) {
	env := envelope{Session: s.id}
	if s.err != nil {
		env.Error = s.err.Error()
		p.logger.Warn().Err(s.err).Stringer("round", s.kind).Msg("Round failed")
	}
	switch s.kind {
	case roundDkg:
		if s.err == nil {
			env.Payload = s.result
		}
		return newPacket(message.KindDkgEnd, p.cfg.SignerID, p.cfg.PrivateKey, env)
	case roundSign:
		if s.err == nil {
			return nil, nil
		}
		return newPacket(message.KindSignatureShareResponse, p.cfg.SignerID, p.cfg.PrivateKey, env)
	}
	return nil, nil
}

// wrap turns a handler message into a signed packet.
func (p *participant) wrap(s *session, m *mpsProtocol.Message) (*message.Packet, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("frost: encode handler message: %w", err)
	}
	env := envelope{Session: s.id, Payload: data}
	directed := !m.Broadcast && m.To != ""
	if directed {
		to, err := signerOf(m.To)
		if err != nil {
			return nil, err
		}
		peer, err := p.cfg.Keys.PublicKey(to)
		if err != nil {
			return nil, err
		}
		if env.Payload, env.Nonce, err = seal(p.cfg.PrivateKey, peer, s.id, data); err != nil {
			return nil, fmt.Errorf("frost: seal directed message: %w", err)
		}
		env.To = &to
	}

	var kind message.PacketKind
	switch {
	case s.kind == roundDkg && directed:
		kind = message.KindDkgPrivateShares
	case s.kind == roundDkg:
		kind = message.KindDkgPublicShares
	case s.flushes == 0:
		kind = message.KindNonceResponse
	default:
		kind = message.KindSignatureShareResponse
	}
	return newPacket(kind, p.cfg.SignerID, p.cfg.PrivateKey, env)
}

// signature returns the local result of signing session id.
func (p *participant) signature(id []byte) (sig []byte, done bool, err error) {
	s := p.active
	if s == nil || s.kind != roundSign || !bytes.Equal(s.id, id) || !s.done {
		return nil, false, nil
	}
	return s.result, true, s.err
}
