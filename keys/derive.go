// Package keys derives the signing identity from a recovery phrase and
// registers it for the accounts it signs as.
package keys

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// DerivationPath is the hardened SLIP-0010 path registered for NEAR (coin type 397).
var DerivationPath = []uint32{44, 397, 0}

const (
	hardenedOffset = 0x80000000
	seedRounds     = 2048
	seedLength     = 64
)

// NormalizeSeedPhrase trims, lowercases and collapses whitespace.
func NormalizeSeedPhrase(seedPhrase string) string {
	return strings.ToLower(strings.Join(strings.Fields(seedPhrase), " "))
}

// Derive turns a BIP-39 recovery phrase into the run's identity for
// accountID. The same phrase always yields the same key pair.
func Derive(accountID interfaces.AccountID, seedPhrase string) (*interfaces.Identity, error) {
	kp, err := KeyPairFromSeedPhrase(seedPhrase, "")
	if err != nil {
		return nil, err
	}
	return &interfaces.Identity{AccountID: accountID, KeyPair: kp}, nil
}

// KeyPairFromSeedPhrase derives the ed25519 key pair for a phrase and an
// optional BIP-39 passphrase.
func KeyPairFromSeedPhrase(seedPhrase, passphrase string) (*interfaces.KeyPair, error) {
	mnemonic := NormalizeSeedPhrase(seedPhrase)
	if mnemonic == "" {
		return nil, fmt.Errorf("%w: empty phrase", interfaces.ErrInvalidSeedPhrase)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: not a valid BIP-39 mnemonic", interfaces.ErrInvalidSeedPhrase)
	}

	seed := pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"+passphrase), seedRounds, seedLength, sha512.New)

	key, _ := deriveSLIP10(seed, DerivationPath)
	return interfaces.NewKeyPair(ed25519.NewKeyFromSeed(key)), nil
}

// deriveSLIP10 walks a fully hardened ed25519 path and returns the private
// key seed and chain code at its end.
func deriveSLIP10(seed []byte, path []uint32) (key, chainCode []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode = sum[:32], sum[32:]

	for _, index := range path {
		data := make([]byte, 0, 1+32+4)
		data = append(data, 0x00)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, index|hardenedOffset)

		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chainCode = sum[:32], sum[32:]
	}
	return key, chainCode
}
