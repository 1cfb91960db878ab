// Package event defines the messages exchanged with operators over the
// bus: commands in, round results out.
package event

import "fmt"

type ResultType string

const (
	ResultTypeSuccess ResultType = "success"
	ResultTypeError   ResultType = "error"
)

type ErrorCode string

const (
	ErrorCodeDkgFailure     ErrorCode = "ERROR_DKG_FAILURE"
	ErrorCodeSigningFailure ErrorCode = "ERROR_SIGNING_FAILURE"
)

const (
	CommandTopicBase     = "signer.command"
	RoundResultTopicBase = "signer.round_result"
)

// CommandTopic is where operators send commands for one signer.
func CommandTopic(signerID uint32) string {
	return fmt.Sprintf("%s.%d", CommandTopicBase, signerID)
}

// RoundResultTopic is where a signer publishes its finished rounds.
func RoundResultTopic(signerID uint32) string {
	return fmt.Sprintf("%s.%d", RoundResultTopicBase, signerID)
}

// RoundResultEvent is the operator-facing form of a round outcome.
type RoundResultEvent struct {
	ID          string     `json:"id"`
	SignerID    uint32     `json:"signer_id"`
	OutcomeKind string     `json:"outcome_kind"`
	ResultType  ResultType `json:"result_type"`
	ErrorCode   ErrorCode  `json:"error_code,omitempty"`
	ErrorReason string     `json:"error_reason,omitempty"`
	CreatedAt   string     `json:"created_at"`

	// DKG
	AggregatePublicKey string `json:"aggregate_public_key,omitempty"`

	// Schnorr signature (R, z) or taproot proof (R, s).
	R []byte `json:"r,omitempty"`
	Z []byte `json:"z,omitempty"`
	S []byte `json:"s,omitempty"`
}
