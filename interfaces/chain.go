package interfaces

import (
	"context"
	"math/big"
)

// TransactionSubmitter submits signed function-call transactions. Submit
// blocks until the ledger returns an outcome. A non-nil error is a transport
// or signing problem; on-chain failures are reported through the outcome.
type TransactionSubmitter interface {
	Submit(ctx context.Context, req *TransactionRequest) (*TransactionOutcome, error)
}

// AccountLifecycle covers account provisioning and code deployment.
type AccountLifecycle interface {
	DeleteAccount(ctx context.Context, accountID, beneficiaryID AccountID) (*TransactionOutcome, error)
	CreateAccount(ctx context.Context, funderID, newAccountID AccountID, publicKey PublicKey, amount *big.Int) (*TransactionOutcome, error)
	DeployContract(ctx context.Context, accountID AccountID, code []byte) (*TransactionOutcome, error)
	ViewAccount(ctx context.Context, accountID AccountID) (*AccountView, error)
}

// Confirmer waits until a submitted transaction is durably visible. An empty
// txHash means there is nothing to confirm; implementations may still wait.
type Confirmer interface {
	AwaitConfirmation(ctx context.Context, txHash string, signerID AccountID) error
}
