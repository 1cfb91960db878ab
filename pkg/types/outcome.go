package types

import "github.com/decred/dcrd/dcrec/secp256k1/v4"

const (
	OutcomeDkgKey       = "dkg_key"
	OutcomeSignature    = "signature"
	OutcomeTaprootProof = "taproot_proof"
	OutcomeDkgFailed    = "dkg_failed"
	OutcomeSignFailed   = "sign_failed"
)

// Outcome is the result of a completed round.
type Outcome interface {
	OutcomeKind() string
}

// DkgKey carries the aggregate public key produced by DKG.
type DkgKey struct {
	Key *secp256k1.PublicKey
}

// Signature is a Schnorr signature (R, z).
type Signature struct {
	R []byte
	Z []byte
}

// TaprootProof is a BIP-340 style proof: x-only R and scalar s.
type TaprootProof struct {
	R []byte
	S []byte
}

type DkgFailed struct {
	Reason string
}

type SignFailed struct {
	Reason string
}

func (DkgKey) OutcomeKind() string       { return OutcomeDkgKey }
func (Signature) OutcomeKind() string    { return OutcomeSignature }
func (TaprootProof) OutcomeKind() string { return OutcomeTaprootProof }
func (DkgFailed) OutcomeKind() string    { return OutcomeDkgFailed }
func (SignFailed) OutcomeKind() string   { return OutcomeSignFailed }
