// Package encoding holds the small conversions shared by the config loader,
// the node client and the result events.
package encoding

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var ErrEmptyKey = errors.New("empty key")

// StructToJsonBytes converts a struct to JSON bytes
func StructToJsonBytes(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// JsonBytesToStruct converts JSON bytes to a struct
func JsonBytesToStruct(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// DecodeHex decodes a hex string, tolerating an optional 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}

// DecodeS256PubKeyHex parses a compressed or uncompressed secp256k1 public key.
func DecodeS256PubKeyHex(s string) (*secp256k1.PublicKey, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key hex: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyKey
	}
	return secp256k1.ParsePubKey(raw)
}

// EncodeS256PubKeyHex returns the compressed hex form of pub.
func EncodeS256PubKeyHex(pub *secp256k1.PublicKey) string {
	if pub == nil {
		return ""
	}
	return hex.EncodeToString(pub.SerializeCompressed())
}

// DecodeS256PrivKeyHex parses a 32-byte secp256k1 private key. A trailing
// compression flag byte (33-byte form) is accepted.
func DecodeS256PrivKeyHex(s string) (*secp256k1.PrivateKey, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key hex: %w", err)
	}
	switch len(raw) {
	case 0:
		return nil, ErrEmptyKey
	case secp256k1.PrivKeyBytesLen:
	case secp256k1.PrivKeyBytesLen + 1:
		raw = raw[:secp256k1.PrivKeyBytesLen]
	default:
		return nil, fmt.Errorf("invalid private key length %d", len(raw))
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}
