// Package frost is the default threshold engine: FROST over secp256k1
// producing BIP-340 signatures, driven by the luxfi/threshold handlers.
//
// Every committee member is one FROST party. The coordinator opens rounds
// with DkgBegin and NonceRequest packets; the handlers' own messages travel
// as DkgPublicShares, DkgPrivateShares, NonceResponse and
// SignatureShareResponse packets, with directed messages sealed to their
// recipient's message key.
package frost

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/luxfi/threshold/pkg/party"

	"github.com/luxfi/signer/pkg/runloop"
	"github.com/luxfi/signer/pkg/threshold"
)

const Name = "frost"

var (
	ErrNoKeyShare      = errors.New("frost: no key share, run DKG first")
	ErrNoAggregateKey  = errors.New("frost: no aggregate public key")
	ErrUnexpectedValue = errors.New("frost: unexpected protocol result")
)

func init() {
	threshold.Register(Engine{})
}

type Engine struct{}

func (Engine) Name() string { return Name }

func (Engine) New(cfg threshold.EngineConfig) (runloop.Coordinator, runloop.Signer, error) {
	p, err := newParticipant(cfg)
	if err != nil {
		return nil, nil, err
	}
	return newCoordinator(cfg, p), p, nil
}

func partyID(signerID uint32) party.ID {
	return party.ID(strconv.FormatUint(uint64(signerID), 10))
}

func signerOf(id party.ID) (uint32, error) {
	v, err := strconv.ParseUint(string(id), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("frost: bad party id %q", id)
	}
	return uint32(v), nil
}

// partyThreshold converts the key-share signing threshold into the FROST
// degree t, where t+1 parties are needed to sign.
func partyThreshold(cfg threshold.EngineConfig) int {
	n := uint64(cfg.Keys.TotalSigners())
	need := n
	if total := uint64(cfg.Threshold.TotalKeys); total > 0 {
		need = (uint64(cfg.Threshold.SigningThreshold)*n + total - 1) / total
	}
	need = min(max(need, 1), n)
	if need == 0 {
		return 0
	}
	return int(need - 1)
}
