package message

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/utils"
)

// PacketKind identifies the threshold protocol sub-message carried by a
// packet.
type PacketKind uint8

const (
	KindDkgBegin PacketKind = iota + 1
	KindDkgPrivateBegin
	KindDkgEndBegin
	KindNonceRequest
	KindSignatureShareRequest

	KindDkgPublicShares
	KindDkgPrivateShares
	KindDkgEnd
	KindNonceResponse
	KindSignatureShareResponse
)

var kindNames = map[PacketKind]string{
	KindDkgBegin:               "DkgBegin",
	KindDkgPrivateBegin:        "DkgPrivateBegin",
	KindDkgEndBegin:            "DkgEndBegin",
	KindNonceRequest:           "NonceRequest",
	KindSignatureShareRequest:  "SignatureShareRequest",
	KindDkgPublicShares:        "DkgPublicShares",
	KindDkgPrivateShares:       "DkgPrivateShares",
	KindDkgEnd:                 "DkgEnd",
	KindNonceResponse:          "NonceResponse",
	KindSignatureShareResponse: "SignatureShareResponse",
}

func (k PacketKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PacketKind(%d)", uint8(k))
}

// Valid reports whether k is a known kind.
func (k PacketKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsCoordinatorKind reports whether packets of this kind may only be sent
// by the coordinator.
func (k PacketKind) IsCoordinatorKind() bool {
	return k >= KindDkgBegin && k <= KindSignatureShareRequest
}

// Packet is a signed threshold protocol message. Body is opaque to the run
// loop and interpreted by the threshold engine.
type Packet struct {
	Kind      PacketKind `cbor:"1,keyasint"`
	SignerID  uint32     `cbor:"2,keyasint"`
	Body      []byte     `cbor:"3,keyasint,omitempty"`
	Signature []byte     `cbor:"4,keyasint,omitempty"`
}

func (p *Packet) MessageType() string { return "packet" }

func (p *Packet) validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: packet kind %d", ErrInvalid, uint8(p.Kind))
	}
	return nil
}

// Digest is the hash covered by the packet signature.
func (p *Packet) Digest() []byte {
	var hdr [5]byte
	hdr[0] = byte(p.Kind)
	binary.BigEndian.PutUint32(hdr[1:], p.SignerID)
	return utils.Sha256(hdr[:], p.Body)
}

// Sign sets the packet signature using the sender's message key.
func (p *Packet) Sign(priv *secp256k1.PrivateKey) {
	p.Signature = ecdsa.Sign(priv, p.Digest()).Serialize()
}

// Verify checks the packet signature. Coordinator kinds must be signed by
// coordinatorKey; every other kind by the key registered for SignerID.
func (p *Packet) Verify(keys committee.PublicKeySet, coordinatorKey *secp256k1.PublicKey) bool {
	if !p.Kind.Valid() || len(p.Signature) == 0 {
		return false
	}
	var pub *secp256k1.PublicKey
	if p.Kind.IsCoordinatorKind() {
		pub = coordinatorKey
	} else {
		pub = keys.Signers[p.SignerID]
	}
	if pub == nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(p.Signature)
	if err != nil {
		return false
	}
	return sig.Verify(p.Digest(), pub)
}
