package interfaces

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// AccountID is a human-readable account identifier, e.g. "alice.testnet".
type AccountID string

func (a AccountID) String() string {
	return string(a)
}

// NetworkID selects the target ledger.
type NetworkID string

const (
	Testnet NetworkID = "testnet"
	Mainnet NetworkID = "mainnet"
)

// NetworkConfig holds the endpoints for one network. It is selected once at
// startup and never changes afterwards.
type NetworkConfig struct {
	NetworkID   NetworkID `json:"network_id"`
	RPCEndpoint string    `json:"rpc_endpoint"`
	WalletURL   string    `json:"wallet_url"`
	ExplorerURL string    `json:"explorer_url"`
}

// TxURL returns the explorer link for a transaction hash.
func (c NetworkConfig) TxURL(txHash string) string {
	return strings.TrimSuffix(c.ExplorerURL, "/") + "/txns/" + txHash
}

// TransactionRequest describes a single function-call transaction.
type TransactionRequest struct {
	SignerID   AccountID
	ReceiverID AccountID
	MethodName string
	Args       map[string]any
	Gas        uint64
	// Deposit is the attached amount in yocto units. Nil means zero.
	Deposit *big.Int
}

// OutcomeStatus is the kind of a transaction outcome.
type OutcomeStatus int

const (
	// OutcomePending means the transaction is known but not yet executed.
	OutcomePending OutcomeStatus = iota
	OutcomeSuccess
	OutcomeFailure
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TransactionOutcome is the result of a submitted transaction.
type TransactionOutcome struct {
	TxHash   string        `json:"tx_hash"`
	SignerID AccountID     `json:"signer_id"`
	Status   OutcomeStatus `json:"status"`
	// SuccessValue is the method's return value, JSON-serialized then base64-encoded.
	SuccessValue string `json:"success_value,omitempty"`
	// Failure is the raw failure reason reported by the chain.
	Failure json.RawMessage `json:"failure,omitempty"`
	Logs    []string        `json:"logs,omitempty"`
}

// Succeeded reports whether the outcome is of kind Success.
func (o *TransactionOutcome) Succeeded() bool {
	return o != nil && o.Status == OutcomeSuccess
}

// Err returns a *TxFailure for Failure outcomes and nil otherwise.
func (o *TransactionOutcome) Err() error {
	if o == nil || o.Status != OutcomeFailure {
		return nil
	}
	return &TxFailure{TxHash: o.TxHash, Reason: o.Failure}
}

// RequireSuccess returns nil only for Success outcomes. Failure outcomes
// yield a *TxFailure, anything else ErrOutcomeNotFinal.
func (o *TransactionOutcome) RequireSuccess() error {
	switch {
	case o.Succeeded():
		return nil
	case o == nil:
		return fmt.Errorf("%w: no outcome", ErrOutcomeNotFinal)
	case o.Status == OutcomeFailure:
		return o.Err()
	default:
		return fmt.Errorf("%w: transaction %s is %s", ErrOutcomeNotFinal, o.TxHash, o.Status)
	}
}

// AccessKeyView is the on-chain state of one access key.
type AccessKeyView struct {
	Nonce       uint64
	BlockHash   [32]byte
	BlockHeight uint64
	FullAccess  bool
}

// AccountView is the on-chain state of an account.
type AccountView struct {
	Amount       *big.Int `json:"amount"`
	Locked       *big.Int `json:"locked"`
	CodeHash     string   `json:"code_hash"`
	StorageUsage uint64   `json:"storage_usage"`
	BlockHeight  uint64   `json:"block_height"`
}
