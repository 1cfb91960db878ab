package event

import (
	"fmt"

	"github.com/luxfi/signer/pkg/types"
)

func CreateSignatureSuccess(signerID uint32, sig types.Signature) RoundResultEvent {
	return RoundResultEvent{
		SignerID:    signerID,
		OutcomeKind: types.OutcomeSignature,
		ResultType:  ResultTypeSuccess,
		R:           sig.R,
		Z:           sig.Z,
	}
}

func CreateTaprootSuccess(signerID uint32, proof types.TaprootProof) RoundResultEvent {
	return RoundResultEvent{
		SignerID:    signerID,
		OutcomeKind: types.OutcomeTaprootProof,
		ResultType:  ResultTypeSuccess,
		R:           proof.R,
		S:           proof.S,
	}
}

func CreateSignFailure(signerID uint32, reason string) RoundResultEvent {
	return RoundResultEvent{
		SignerID:    signerID,
		OutcomeKind: types.OutcomeSignFailed,
		ResultType:  ResultTypeError,
		ErrorCode:   ErrorCodeSigningFailure,
		ErrorReason: reason,
	}
}

// FromOutcome converts a round outcome into its result event.
func FromOutcome(signerID uint32, outcome types.Outcome) (RoundResultEvent, error) {
	switch o := outcome.(type) {
	case types.DkgKey:
		return CreateDkgSuccess(signerID, o.Key), nil
	case types.DkgFailed:
		return CreateDkgFailure(signerID, o.Reason), nil
	case types.Signature:
		return CreateSignatureSuccess(signerID, o), nil
	case types.TaprootProof:
		return CreateTaprootSuccess(signerID, o), nil
	case types.SignFailed:
		return CreateSignFailure(signerID, o.Reason), nil
	default:
		return RoundResultEvent{}, fmt.Errorf("event: unknown outcome %T", outcome)
	}
}
