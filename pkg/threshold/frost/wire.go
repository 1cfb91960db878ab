package frost

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/signer/pkg/encryption"
	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/utils"
)

// envelope is the body of every packet this engine emits.
type envelope struct {
	Session []byte `cbor:"1,keyasint"`
	// To is set for a message meant for a single signer. Its payload is
	// sealed to that signer.
	To      *uint32 `cbor:"2,keyasint,omitempty"`
	Nonce   []byte  `cbor:"3,keyasint,omitempty"`
	Payload []byte  `cbor:"4,keyasint,omitempty"`
	Error   string  `cbor:"5,keyasint,omitempty"`
}

type signRequest struct {
	Digest  []byte `cbor:"1,keyasint"`
	Taproot bool   `cbor:"2,keyasint,omitempty"`
}

func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := cbor.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("frost: decode envelope: %w", err)
	}
	if len(env.Session) == 0 {
		return nil, fmt.Errorf("frost: envelope without session")
	}
	return &env, nil
}

func newPacket(kind message.PacketKind, signerID uint32, priv *secp256k1.PrivateKey, env envelope) (*message.Packet, error) {
	body, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("frost: encode envelope: %w", err)
	}
	pkt := &message.Packet{Kind: kind, SignerID: signerID, Body: body}
	pkt.Sign(priv)
	return pkt, nil
}

// pairKey is the AES key shared by two signers for one session.
func pairKey(priv *secp256k1.PrivateKey, peer *secp256k1.PublicKey, session []byte) []byte {
	return utils.Sha256([]byte("frost/pair"), secp256k1.GenerateSharedSecret(priv, peer), session)
}

func seal(priv *secp256k1.PrivateKey, peer *secp256k1.PublicKey, session, plain []byte) (ciphertext, nonce []byte, err error) {
	return encryption.EncryptAESGCM(plain, pairKey(priv, peer, session))
}

func open(priv *secp256k1.PrivateKey, peer *secp256k1.PublicKey, session, ciphertext, nonce []byte) ([]byte, error) {
	return encryption.DecryptAESGCM(ciphertext, pairKey(priv, peer, session), nonce)
}

// signingDigest is the 32-byte value the committee signs. A merkle root,
// when given, is committed into the digest.
func signingDigest(msg []byte, merkleRoot *[32]byte) []byte {
	if merkleRoot == nil {
		return utils.Sha256(msg)
	}
	return utils.Sha256([]byte("frost/merkle"), merkleRoot[:], msg)
}
