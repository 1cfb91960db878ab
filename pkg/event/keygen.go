package event

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/signer/pkg/encoding"
	"github.com/luxfi/signer/pkg/types"
)

// CreateDkgSuccess creates a successful DKG event
func CreateDkgSuccess(signerID uint32, key *secp256k1.PublicKey) RoundResultEvent {
	return RoundResultEvent{
		SignerID:           signerID,
		OutcomeKind:        types.OutcomeDkgKey,
		ResultType:         ResultTypeSuccess,
		AggregatePublicKey: encoding.EncodeS256PubKeyHex(key),
	}
}

// CreateDkgFailure creates a failed DKG event
func CreateDkgFailure(signerID uint32, reason string) RoundResultEvent {
	return RoundResultEvent{
		SignerID:    signerID,
		OutcomeKind: types.OutcomeDkgFailed,
		ResultType:  ResultTypeError,
		ErrorCode:   ErrorCodeDkgFailure,
		ErrorReason: reason,
	}
}
