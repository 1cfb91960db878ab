// Package kms seals the signer's message private key under a passphrase.
// Two formats are read: the native JSON envelope (argon2id + AES-GCM) and
// age scrypt files.
package kms

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/argon2"

	"github.com/luxfi/signer/pkg/encryption"
)

const (
	KeyTypeSecp256k1 = "secp256k1"
	KDFArgon2id      = "argon2id"

	ageHeader = "age-encryption.org/v1"
	saltSize  = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

var (
	ErrEmptyPassphrase = errors.New("kms: passphrase must not be empty")
	ErrDecrypt         = errors.New("kms: wrong passphrase or corrupted key file")
	ErrUnsupported     = errors.New("kms: unsupported key file")
)

// EncryptedKey is the native key file.
type EncryptedKey struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	KDF       string `json:"kdf"`
	Encrypted string `json:"encrypted"`
	Salt      string `json:"salt"`
	Nonce     string `json:"nonce"`
	CreatedAt string `json:"created_at"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// Seal encrypts priv into a native key file.
func Seal(priv *secp256k1.PrivateKey, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	encKey := deriveKey(passphrase, salt)
	ct, nonce, err := encryption.EncryptAESGCM(priv.Serialize(), encKey)
	if err != nil {
		return nil, err
	}

	pub := priv.PubKey().SerializeCompressed()
	return json.MarshalIndent(EncryptedKey{
		ID:        encryption.KeyID(pub),
		Type:      KeyTypeSecp256k1,
		KDF:       KDFArgon2id,
		Encrypted: base64.StdEncoding.EncodeToString(ct),
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Nonce:     base64.StdEncoding.EncodeToString(nonce),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
}

// SealAge encrypts priv to an age scrypt recipient. workFactor is the
// scrypt log2(N); zero keeps age's default.
func SealAge(priv *secp256k1.PrivateKey, passphrase string, workFactor int) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}
	var out bytes.Buffer
	w, err := age.Encrypt(&out, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(priv.Serialize()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Open decrypts a key file in either format.
func Open(data []byte, passphrase string) (*secp256k1.PrivateKey, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if bytes.HasPrefix(data, []byte(ageHeader)) {
		return openAge(data, passphrase)
	}

	var encKey EncryptedKey
	if err := json.Unmarshal(data, &encKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if encKey.Type != KeyTypeSecp256k1 || encKey.KDF != KDFArgon2id {
		return nil, fmt.Errorf("%w: type %q kdf %q", ErrUnsupported, encKey.Type, encKey.KDF)
	}
	ct, err := base64.StdEncoding.DecodeString(encKey.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted: %v", ErrUnsupported, err)
	}
	salt, err := base64.StdEncoding.DecodeString(encKey.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrUnsupported, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(encKey.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrUnsupported, err)
	}

	plain, err := encryption.DecryptAESGCM(ct, deriveKey(passphrase, salt), nonce)
	if err != nil {
		return nil, ErrDecrypt
	}
	return parseKey(plain)
}

func openAge(data []byte, passphrase string) (*secp256k1.PrivateKey, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, ErrDecrypt
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrDecrypt
	}
	return parseKey(plain)
}

func parseKey(raw []byte) (*secp256k1.PrivateKey, error) {
	if len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: key is %d bytes", ErrUnsupported, len(raw))
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

// ReadKeyFile loads and opens the key file at path.
func ReadKeyFile(path, passphrase string) (*secp256k1.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return Open(data, passphrase)
}

// WriteKeyFile writes a sealed key readable only by the owner. Existing
// files are not overwritten.
func WriteKeyFile(path string, sealed []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(sealed); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
