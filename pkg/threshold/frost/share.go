package frost

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/threshold/pkg/math/curve"
	"github.com/luxfi/threshold/pkg/party"
	mpsFrost "github.com/luxfi/threshold/protocols/frost"

	"github.com/luxfi/signer/pkg/kvstore"
)

type shareRecord struct {
	ID                 party.ID            `cbor:"1,keyasint"`
	Threshold          int                 `cbor:"2,keyasint"`
	PrivateShare       []byte              `cbor:"3,keyasint"`
	PublicKey          []byte              `cbor:"4,keyasint"`
	ChainKey           []byte              `cbor:"5,keyasint,omitempty"`
	VerificationShares []verificationShare `cbor:"6,keyasint"`
}

type verificationShare struct {
	ID    party.ID `cbor:"1,keyasint"`
	Point []byte   `cbor:"2,keyasint"`
}

func shareKey(signerID uint32) string {
	return fmt.Sprintf("frost/share/%d", signerID)
}

func marshalShare(cfg *mpsFrost.TaprootConfig) ([]byte, error) {
	private, err := cfg.PrivateShare.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("frost: marshal private share: %w", err)
	}
	rec := shareRecord{
		ID:           cfg.ID,
		Threshold:    cfg.Threshold,
		PrivateShare: private,
		PublicKey:    cfg.PublicKey,
		ChainKey:     cfg.ChainKey,
	}
	for id, point := range cfg.VerificationShares {
		b, err := point.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("frost: marshal verification share %s: %w", id, err)
		}
		rec.VerificationShares = append(rec.VerificationShares, verificationShare{ID: id, Point: b})
	}
	return cbor.Marshal(rec)
}

func unmarshalShare(data []byte) (*mpsFrost.TaprootConfig, error) {
	var rec shareRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("frost: unmarshal share: %w", err)
	}

	group := curve.Secp256k1{}
	private := group.NewScalar().(*curve.Secp256k1Scalar)
	if err := private.UnmarshalBinary(rec.PrivateShare); err != nil {
		return nil, fmt.Errorf("frost: unmarshal private share: %w", err)
	}
	shares := make(map[party.ID]*curve.Secp256k1Point, len(rec.VerificationShares))
	for _, vs := range rec.VerificationShares {
		point := group.NewPoint().(*curve.Secp256k1Point)
		if err := point.UnmarshalBinary(vs.Point); err != nil {
			return nil, fmt.Errorf("frost: unmarshal verification share %s: %w", vs.ID, err)
		}
		shares[vs.ID] = point
	}
	return &mpsFrost.TaprootConfig{
		ID:                 rec.ID,
		Threshold:          rec.Threshold,
		PrivateShare:       private,
		PublicKey:          rec.PublicKey,
		ChainKey:           rec.ChainKey,
		VerificationShares: shares,
	}, nil
}

// loadShare returns nil without error when store holds no share.
func loadShare(store kvstore.KVStore, signerID uint32) (*mpsFrost.TaprootConfig, error) {
	if store == nil {
		return nil, nil
	}
	data, err := store.Get(shareKey(signerID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalShare(data)
}

func saveShare(store kvstore.KVStore, signerID uint32, cfg *mpsFrost.TaprootConfig) error {
	if store == nil {
		return nil
	}
	data, err := marshalShare(cfg)
	if err != nil {
		return err
	}
	return store.Put(shareKey(signerID), data)
}
