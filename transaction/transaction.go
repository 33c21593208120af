// Package transaction builds, serializes and signs ledger transactions.
//
// Transactions are Borsh-encoded. The transaction hash is the SHA-256 of the
// encoded unsigned transaction and is what gets signed; the signed form
// appends the ed25519 signature and is submitted as base64.
package transaction

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58"
	"github.com/ruteri/commit-reveal-driver/interfaces"
)

// Transaction is an unsigned transaction.
type Transaction struct {
	SignerID   interfaces.AccountID
	PublicKey  interfaces.PublicKey
	Nonce      uint64
	ReceiverID interfaces.AccountID
	BlockHash  [32]byte
	Actions    []Action
}

func (tx *Transaction) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeString(enc, string(tx.SignerID)); err != nil {
		return err
	}
	if err := writePublicKey(enc, tx.PublicKey); err != nil {
		return err
	}
	if err := enc.WriteUint64(tx.Nonce, bin.LE); err != nil {
		return err
	}
	if err := writeString(enc, string(tx.ReceiverID)); err != nil {
		return err
	}
	if err := enc.WriteBytes(tx.BlockHash[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(tx.Actions)), bin.LE); err != nil {
		return err
	}
	for _, action := range tx.Actions {
		if err := enc.WriteUint8(action.Kind()); err != nil {
			return err
		}
		if err := action.MarshalWithEncoder(enc); err != nil {
			return fmt.Errorf("encoding action %d: %w", action.Kind(), err)
		}
	}
	return nil
}

func (tx *Transaction) UnmarshalWithDecoder(dec *bin.Decoder) error {
	signer, err := readString(dec)
	if err != nil {
		return err
	}
	tx.SignerID = interfaces.AccountID(signer)
	if tx.PublicKey, err = readPublicKey(dec); err != nil {
		return err
	}
	if tx.Nonce, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	receiver, err := readString(dec)
	if err != nil {
		return err
	}
	tx.ReceiverID = interfaces.AccountID(receiver)
	blockHash, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	copy(tx.BlockHash[:], blockHash)

	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	tx.Actions = make([]Action, 0, n)
	for i := uint32(0); i < n; i++ {
		kind, err := dec.ReadUint8()
		if err != nil {
			return err
		}
		action, err := newAction(kind)
		if err != nil {
			return err
		}
		if err := action.UnmarshalWithDecoder(dec); err != nil {
			return fmt.Errorf("decoding action %d: %w", kind, err)
		}
		tx.Actions = append(tx.Actions, action)
	}
	return nil
}

// Serialize returns the Borsh encoding of the unsigned transaction.
func (tx *Transaction) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := tx.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the SHA-256 of the serialized transaction.
func (tx *Transaction) Hash() ([32]byte, error) {
	data, err := tx.Serialize()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// SignedTransaction is a transaction plus its signature.
type SignedTransaction struct {
	Transaction *Transaction
	Signature   [ed25519.SignatureSize]byte
	hash        [32]byte
}

// Sign hashes and signs tx. The key pair must match tx.PublicKey.
func Sign(tx *Transaction, kp *interfaces.KeyPair) (*SignedTransaction, error) {
	if kp.PublicKey != tx.PublicKey {
		return nil, fmt.Errorf("%w: signing key %s does not match transaction key %s", interfaces.ErrInvalidKey, kp.PublicKey, tx.PublicKey)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("could not hash transaction: %w", err)
	}

	stx := &SignedTransaction{Transaction: tx, hash: hash}
	copy(stx.Signature[:], kp.Sign(hash[:]))
	return stx, nil
}

func (stx *SignedTransaction) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := stx.Transaction.MarshalWithEncoder(enc); err != nil {
		return err
	}
	if err := enc.WriteUint8(interfaces.KeyTypeED25519); err != nil {
		return err
	}
	return enc.WriteBytes(stx.Signature[:], false)
}

func (stx *SignedTransaction) UnmarshalWithDecoder(dec *bin.Decoder) error {
	stx.Transaction = new(Transaction)
	if err := stx.Transaction.UnmarshalWithDecoder(dec); err != nil {
		return err
	}
	keyType, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	if keyType != interfaces.KeyTypeED25519 {
		return fmt.Errorf("unsupported signature type %d", keyType)
	}
	sig, err := dec.ReadNBytes(ed25519.SignatureSize)
	if err != nil {
		return err
	}
	copy(stx.Signature[:], sig)
	stx.hash, err = stx.Transaction.Hash()
	return err
}

// Hash returns the transaction hash.
func (stx *SignedTransaction) Hash() [32]byte {
	return stx.hash
}

// HashString returns the base58 transaction hash, as shown by explorers and RPC.
func (stx *SignedTransaction) HashString() string {
	return base58.Encode(stx.hash[:])
}

// Verify checks the signature against the transaction's public key.
func (stx *SignedTransaction) Verify() bool {
	return ed25519.Verify(stx.Transaction.PublicKey[:], stx.hash[:], stx.Signature[:])
}

// Serialize returns the Borsh encoding of the signed transaction.
func (stx *SignedTransaction) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := stx.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Base64 returns the submission form of the signed transaction.
func (stx *SignedTransaction) Base64() (string, error) {
	data, err := stx.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSignedTransaction parses the submission form produced by Base64.
func DecodeSignedTransaction(encoded string) (*SignedTransaction, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	stx := new(SignedTransaction)
	dec := bin.NewBorshDecoder(data)
	if err := stx.UnmarshalWithDecoder(dec); err != nil {
		return nil, fmt.Errorf("invalid transaction encoding: %w", err)
	}
	if dec.Remaining() != 0 {
		return nil, fmt.Errorf("invalid transaction encoding: %d trailing bytes", dec.Remaining())
	}
	return stx, nil
}

// ParseBlockHash decodes a base58 block hash.
func ParseBlockHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("invalid block hash %q: %w", s, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("invalid block hash %q: length %d", s, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
