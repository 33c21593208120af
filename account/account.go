// Package account signs and submits transactions on behalf of the accounts in
// a key store.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/transaction"
	"go.uber.org/atomic"
)

// RPC is the subset of the node API the manager needs. Implemented by *nearrpc.Client.
type RPC interface {
	ViewAccessKey(ctx context.Context, accountID interfaces.AccountID, pk interfaces.PublicKey) (*interfaces.AccessKeyView, error)
	ViewAccount(ctx context.Context, accountID interfaces.AccountID) (*interfaces.AccountView, error)
	BroadcastTxCommit(ctx context.Context, stx *transaction.SignedTransaction) (*interfaces.TransactionOutcome, error)
}

var (
	_ interfaces.TransactionSubmitter = (*Manager)(nil)
	_ interfaces.AccountLifecycle     = (*Manager)(nil)
)

type nonceKey struct {
	account interfaces.AccountID
	key     interfaces.PublicKey
}

// Manager builds, signs and submits transactions. Every submission blocks
// until the node reports a final outcome.
type Manager struct {
	rpc     RPC
	keys    interfaces.KeyStore
	network interfaces.NetworkConfig
	log     *slog.Logger

	mu     sync.Mutex
	nonces map[nonceKey]*atomic.Uint64
}

// NewManager creates a manager signing with keys registered for network.NetworkID.
func NewManager(rpc RPC, keys interfaces.KeyStore, network interfaces.NetworkConfig, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		rpc:     rpc,
		keys:    keys,
		network: network,
		log:     log,
		nonces:  make(map[nonceKey]*atomic.Uint64),
	}
}

// Submit sends a single function call.
func (m *Manager) Submit(ctx context.Context, req *interfaces.TransactionRequest) (*interfaces.TransactionOutcome, error) {
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("could not encode arguments for %s: %w", req.MethodName, err)
	}

	deposit := req.Deposit
	if deposit == nil {
		deposit = new(big.Int)
	}

	return m.signAndSend(ctx, req.SignerID, req.ReceiverID, &transaction.FunctionCall{
		MethodName: req.MethodName,
		Args:       encoded,
		Gas:        req.Gas,
		Deposit:    deposit,
	})
}

// DeleteAccount deletes accountID, sending its balance to beneficiaryID. The
// account signs its own deletion.
func (m *Manager) DeleteAccount(ctx context.Context, accountID, beneficiaryID interfaces.AccountID) (*interfaces.TransactionOutcome, error) {
	return m.signAndSend(ctx, accountID, accountID, &transaction.DeleteAccount{BeneficiaryID: beneficiaryID})
}

// CreateAccount creates newAccountID funded by funderID, with publicKey as its full-access key.
func (m *Manager) CreateAccount(ctx context.Context, funderID, newAccountID interfaces.AccountID, publicKey interfaces.PublicKey, amount *big.Int) (*interfaces.TransactionOutcome, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	return m.signAndSend(ctx, funderID, newAccountID,
		&transaction.CreateAccount{},
		&transaction.Transfer{Deposit: amount},
		&transaction.AddKey{PublicKey: publicKey},
	)
}

// DeployContract replaces the code of accountID.
func (m *Manager) DeployContract(ctx context.Context, accountID interfaces.AccountID, code []byte) (*interfaces.TransactionOutcome, error) {
	return m.signAndSend(ctx, accountID, accountID, &transaction.DeployContract{Code: code})
}

// ViewAccount returns the on-chain state of accountID.
func (m *Manager) ViewAccount(ctx context.Context, accountID interfaces.AccountID) (*interfaces.AccountView, error) {
	return m.rpc.ViewAccount(ctx, accountID)
}

func (m *Manager) signAndSend(ctx context.Context, signerID, receiverID interfaces.AccountID, actions ...transaction.Action) (*interfaces.TransactionOutcome, error) {
	kp, err := m.keys.Get(m.network.NetworkID, signerID)
	if err != nil {
		return nil, err
	}

	ak, err := m.rpc.ViewAccessKey(ctx, signerID, kp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("could not fetch access key for %s: %w", signerID, err)
	}

	tx := &transaction.Transaction{
		SignerID:   signerID,
		PublicKey:  kp.PublicKey,
		Nonce:      m.nextNonce(signerID, kp.PublicKey, ak.Nonce),
		ReceiverID: receiverID,
		BlockHash:  ak.BlockHash,
		Actions:    actions,
	}
	stx, err := transaction.Sign(tx, kp)
	if err != nil {
		return nil, err
	}

	m.log.Debug("Submitting transaction",
		"signer", signerID,
		"receiver", receiverID,
		"nonce", tx.Nonce,
		"txHash", stx.HashString())

	outcome, err := m.rpc.BroadcastTxCommit(ctx, stx)
	if err != nil {
		m.log.Error("Transaction submission failed", "err", err, "signer", signerID, "receiver", receiverID, "txHash", stx.HashString())
		return nil, err
	}

	m.log.Info("Transaction executed",
		"signer", signerID,
		"receiver", receiverID,
		"status", outcome.Status,
		"txHash", outcome.TxHash,
		"url", m.network.TxURL(outcome.TxHash))
	return outcome, nil
}

// nextNonce returns a nonce above both the chain's view and anything this
// manager already used for the key.
func (m *Manager) nextNonce(accountID interfaces.AccountID, pk interfaces.PublicKey, chainNonce uint64) uint64 {
	m.mu.Lock()
	counter, ok := m.nonces[nonceKey{accountID, pk}]
	if !ok {
		counter = atomic.NewUint64(0)
		m.nonces[nonceKey{accountID, pk}] = counter
	}
	m.mu.Unlock()

	for {
		cur := counter.Load()
		next := max(cur, chainNonce) + 1
		if counter.CompareAndSwap(cur, next) {
			return next
		}
	}
}
