package nearrpc_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math/big"
	"testing"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/nearrpc"
	"github.com/ruteri/commit-reveal-driver/nearrpc/nearrpctest"
	"github.com/ruteri/commit-reveal-driver/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPair(b byte) *interfaces.KeyPair {
	return interfaces.NewKeyPair(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize)))
}

func setup(t *testing.T) (*nearrpctest.Node, *nearrpc.Client) {
	t.Helper()
	node := nearrpctest.NewNode()
	t.Cleanup(node.Close)

	client, err := nearrpc.Dial(context.Background(), node.URL(), nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return node, client
}

func TestViewAccessKey(t *testing.T) {
	node, client := setup(t)
	kp := testKeyPair(1)
	node.AddAccount("alice.testnet", kp.PublicKey, big.NewInt(100))

	ak, err := client.ViewAccessKey(context.Background(), "alice.testnet", kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ak.Nonce)
	assert.True(t, ak.FullAccess)
	assert.NotEqual(t, [32]byte{}, ak.BlockHash)

	_, err = client.ViewAccessKey(context.Background(), "alice.testnet", testKeyPair(2).PublicKey)
	assert.ErrorIs(t, err, interfaces.ErrAccessKeyNotFound)

	_, err = client.ViewAccessKey(context.Background(), "bob.testnet", kp.PublicKey)
	assert.ErrorIs(t, err, interfaces.ErrAccountNotFound)
}

func TestViewAccount(t *testing.T) {
	node, client := setup(t)
	node.AddAccount("alice.testnet", testKeyPair(1).PublicKey, big.NewInt(12345))

	view, err := client.ViewAccount(context.Background(), "alice.testnet")
	require.NoError(t, err)
	assert.Equal(t, "12345", view.Amount.String())
	assert.Equal(t, int64(0), view.Locked.Int64())

	_, err = client.ViewAccount(context.Background(), "nobody.testnet")
	assert.ErrorIs(t, err, interfaces.ErrAccountNotFound)
}

func signedTransfer(t *testing.T, client *nearrpc.Client, kp *interfaces.KeyPair, from, to interfaces.AccountID, amount int64) *transaction.SignedTransaction {
	t.Helper()
	ak, err := client.ViewAccessKey(context.Background(), from, kp.PublicKey)
	require.NoError(t, err)

	stx, err := transaction.Sign(&transaction.Transaction{
		SignerID:   from,
		PublicKey:  kp.PublicKey,
		Nonce:      ak.Nonce + 1,
		ReceiverID: to,
		BlockHash:  ak.BlockHash,
		Actions:    []transaction.Action{&transaction.Transfer{Deposit: big.NewInt(amount)}},
	}, kp)
	require.NoError(t, err)
	return stx
}

func TestBroadcastTxCommit(t *testing.T) {
	node, client := setup(t)
	kp := testKeyPair(1)
	node.AddAccount("alice.testnet", kp.PublicKey, big.NewInt(100))
	node.AddAccount("bob.testnet", testKeyPair(2).PublicKey, big.NewInt(0))

	stx := signedTransfer(t, client, kp, "alice.testnet", "bob.testnet", 40)
	outcome, err := client.BroadcastTxCommit(context.Background(), stx)
	require.NoError(t, err)

	assert.Equal(t, interfaces.OutcomeSuccess, outcome.Status)
	assert.Equal(t, stx.HashString(), outcome.TxHash)
	assert.Equal(t, interfaces.AccountID("alice.testnet"), outcome.SignerID)
	assert.Equal(t, "", outcome.SuccessValue)
	assert.Equal(t, big.NewInt(60), node.Balance("alice.testnet"))
	assert.Equal(t, big.NewInt(40), node.Balance("bob.testnet"))

	status, err := client.TxStatus(context.Background(), stx.HashString(), "alice.testnet")
	require.NoError(t, err)
	assert.Equal(t, outcome, status)
}

func TestBroadcastTxCommit_FailureOutcome(t *testing.T) {
	node, client := setup(t)
	kp := testKeyPair(1)
	node.AddAccount("alice.testnet", kp.PublicKey, big.NewInt(100))

	stx := signedTransfer(t, client, kp, "alice.testnet", "missing.testnet", 1)
	outcome, err := client.BroadcastTxCommit(context.Background(), stx)
	require.NoError(t, err)

	assert.Equal(t, interfaces.OutcomeFailure, outcome.Status)
	assert.Contains(t, string(outcome.Failure), "AccountDoesNotExist")

	var failure *interfaces.TxFailure
	require.ErrorAs(t, outcome.Err(), &failure)
	assert.Equal(t, stx.HashString(), failure.TxHash)
}

func TestBroadcastTxCommit_RejectedNonce(t *testing.T) {
	node, client := setup(t)
	kp := testKeyPair(1)
	node.AddAccount("alice.testnet", kp.PublicKey, big.NewInt(100))
	node.AddAccount("bob.testnet", testKeyPair(2).PublicKey, big.NewInt(0))

	stx := signedTransfer(t, client, kp, "alice.testnet", "bob.testnet", 1)
	_, err := client.BroadcastTxCommit(context.Background(), stx)
	require.NoError(t, err)

	// Replaying the same transaction reuses a spent nonce.
	_, err = client.BroadcastTxCommit(context.Background(), stx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidNonce")
}

func TestTxStatus_Unknown(t *testing.T) {
	_, client := setup(t)

	_, err := client.TxStatus(context.Background(), "9dJpbtvjG3tVAZpSDYmMYp2k1W9t3dNWg3Wwuq2UcNkb", "alice.testnet")
	assert.ErrorIs(t, err, nearrpc.ErrUnknownTransaction)
}
