package committee

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/samber/lo"
)

// SelectCoordinator returns the id and verification key of the signer that
// drives DKG and signing rounds. Every node derives the same answer from the
// same key set, so no extra agreement round is needed.
//
// The lowest signer id always coordinates. This stands in for a verifiable
// random rotation; callers must only rely on the choice being deterministic.
// An empty key set yields (0, nil).
func SelectCoordinator(keys PublicKeySet) (uint32, *secp256k1.PublicKey) {
	if len(keys.Signers) == 0 {
		return 0, nil
	}
	id := lo.Min(lo.Keys(keys.Signers))
	return id, keys.Signers[id]
}

// IsCoordinator reports whether signerID is the current coordinator.
func IsCoordinator(keys PublicKeySet, signerID uint32) bool {
	id, pub := SelectCoordinator(keys)
	return pub != nil && id == signerID
}
