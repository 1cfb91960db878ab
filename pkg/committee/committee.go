// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committee describes the signer set of the current reward cycle:
// who holds which key shares, which thresholds apply and who coordinates.
package committee

import (
	"errors"
	"fmt"
	"slices"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/samber/lo"
)

var (
	ErrSignerNotFound = errors.New("committee: signer not found")
	ErrEmptyCommittee = errors.New("committee: no signers")
)

// PublicKeySet maps signer ids to their message verification keys and to the
// key share ids they control. It is replaced wholesale on reconfiguration.
type PublicKeySet struct {
	// Signers maps signer id to the key used to verify that signer's packets.
	Signers map[uint32]*secp256k1.PublicKey
	// KeyIDs maps key share id to the public key of the signer that owns it.
	KeyIDs map[uint32]*secp256k1.PublicKey
	// SignerKeyIDs maps signer id to the key share ids it controls.
	SignerKeyIDs map[uint32][]uint32
}

// NewPublicKeySet builds a key set from per-signer keys and key share ids.
// Every key id must be owned by exactly one signer.
func NewPublicKeySet(signers map[uint32]*secp256k1.PublicKey, signerKeyIDs map[uint32][]uint32) (PublicKeySet, error) {
	if len(signers) == 0 {
		return PublicKeySet{}, ErrEmptyCommittee
	}
	keys := PublicKeySet{
		Signers:      make(map[uint32]*secp256k1.PublicKey, len(signers)),
		KeyIDs:       make(map[uint32]*secp256k1.PublicKey),
		SignerKeyIDs: make(map[uint32][]uint32, len(signerKeyIDs)),
	}
	for id, pub := range signers {
		if pub == nil {
			return PublicKeySet{}, fmt.Errorf("committee: nil public key for signer %d", id)
		}
		keys.Signers[id] = pub
	}
	for id, keyIDs := range signerKeyIDs {
		pub, ok := signers[id]
		if !ok {
			return PublicKeySet{}, fmt.Errorf("%w: key ids assigned to signer %d", ErrSignerNotFound, id)
		}
		for _, keyID := range keyIDs {
			if _, dup := keys.KeyIDs[keyID]; dup {
				return PublicKeySet{}, fmt.Errorf("committee: key id %d assigned twice", keyID)
			}
			keys.KeyIDs[keyID] = pub
		}
		keys.SignerKeyIDs[id] = append([]uint32(nil), keyIDs...)
	}
	return keys, nil
}

// SignerIDs returns the signer ids in ascending order.
func (k PublicKeySet) SignerIDs() []uint32 {
	ids := lo.Keys(k.Signers)
	slices.Sort(ids)
	return ids
}

// TotalSigners is the number of committee members.
func (k PublicKeySet) TotalSigners() uint32 {
	return uint32(len(k.Signers))
}

// TotalKeys is the number of key shares across the whole committee.
func (k PublicKeySet) TotalKeys() uint32 {
	return uint32(len(k.KeyIDs))
}

// ThresholdConfig derives the protocol thresholds for this key set.
func (k PublicKeySet) ThresholdConfig() ThresholdConfig {
	return NewThresholdConfig(k.TotalSigners(), k.TotalKeys())
}

// PublicKey returns the verification key of signer id.
func (k PublicKeySet) PublicKey(id uint32) (*secp256k1.PublicKey, error) {
	pub, ok := k.Signers[id]
	if !ok || pub == nil {
		return nil, fmt.Errorf("%w: %d", ErrSignerNotFound, id)
	}
	return pub, nil
}
