package interfaces

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// KeyTypeED25519 is the only key type this system signs with. It is also the
// Borsh discriminant used for keys and signatures on the wire.
const KeyTypeED25519 uint8 = 0

const ed25519Prefix = "ed25519:"

// PublicKey is an ed25519 public key.
type PublicKey [ed25519.PublicKeySize]byte

// NewPublicKeyFromString parses the "ed25519:<base58>" text form.
func NewPublicKeyFromString(s string) (PublicKey, error) {
	raw, err := decodeKeyString(s)
	if err != nil {
		return PublicKey{}, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(raw))
	}
	var pk PublicKey
	copy(pk[:], raw)
	return pk, nil
}

// String returns the "ed25519:<base58>" text form.
func (pk PublicKey) String() string {
	return ed25519Prefix + base58.Encode(pk[:])
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// KeyPair is an ed25519 signing key pair.
type KeyPair struct {
	PublicKey  PublicKey
	PrivateKey ed25519.PrivateKey
}

// NewKeyPair wraps an ed25519 private key.
func NewKeyPair(priv ed25519.PrivateKey) *KeyPair {
	var pk PublicKey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return &KeyPair{PublicKey: pk, PrivateKey: priv}
}

// NewKeyPairFromString parses a secret key in "ed25519:<base58>" form. Both
// the 64-byte expanded key and the 32-byte seed are accepted.
func NewKeyPairFromString(s string) (*KeyPair, error) {
	raw, err := decodeKeyString(s)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return NewKeyPair(ed25519.PrivateKey(raw)), nil
	case ed25519.SeedSize:
		return NewKeyPair(ed25519.NewKeyFromSeed(raw)), nil
	default:
		return nil, fmt.Errorf("%w: secret key has unexpected length %d", ErrInvalidKey, len(raw))
	}
}

// Sign signs msg with the private key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, msg)
}

// Verify checks a signature against the public key.
func (kp *KeyPair) Verify(msg, sig []byte) bool {
	return ed25519.Verify(kp.PublicKey[:], msg, sig)
}

// SecretString returns the secret key in "ed25519:<base58>" form.
func (kp *KeyPair) SecretString() string {
	return ed25519Prefix + base58.Encode(kp.PrivateKey)
}

// String never exposes the secret half.
func (kp *KeyPair) String() string {
	return kp.PublicKey.String()
}

// Identity is the single signing identity of a run. It is immutable once derived.
type Identity struct {
	AccountID AccountID
	KeyPair   *KeyPair
}

// KeyStore resolves the signing key for an account on a network.
type KeyStore interface {
	Get(network NetworkID, account AccountID) (*KeyPair, error)
	Accounts(network NetworkID) []AccountID
}

func decodeKeyString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ":"); idx >= 0 {
		if s[:idx] != strings.TrimSuffix(ed25519Prefix, ":") {
			return nil, fmt.Errorf("%w: unsupported key type %q", ErrInvalidKey, s[:idx])
		}
		s = s[idx+1:]
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return raw, nil
}
