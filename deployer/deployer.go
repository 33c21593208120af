// Package deployer uploads the contract binary and initializes it.
package deployer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/validator"
)

// InitMethod is the contract's initialization entry point.
const InitMethod = "init"

// DeployOutcome is the result of a code upload.
type DeployOutcome struct {
	Outcome *interfaces.TransactionOutcome `json:"outcome"`
	// Balance is the account balance observed after deployment, if it could be read.
	Balance string `json:"balance,omitempty"`
}

// InitOutcome is the result of the init call.
type InitOutcome struct {
	Outcome    *interfaces.TransactionOutcome `json:"outcome"`
	Validation validator.Validation           `json:"validation"`
}

// Deployer deploys and initializes contracts.
type Deployer struct {
	accounts  interfaces.AccountLifecycle
	submitter interfaces.TransactionSubmitter
	confirmer interfaces.Confirmer
	log       *slog.Logger
}

func New(accounts interfaces.AccountLifecycle, submitter interfaces.TransactionSubmitter, confirmer interfaces.Confirmer, log *slog.Logger) *Deployer {
	if log == nil {
		log = slog.Default()
	}
	return &Deployer{accounts: accounts, submitter: submitter, confirmer: confirmer, log: log}
}

// Deploy replaces the code of accountID and waits for confirmation.
func (d *Deployer) Deploy(ctx context.Context, accountID interfaces.AccountID, code []byte) (*DeployOutcome, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: empty contract binary", interfaces.ErrDeployFailed)
	}

	outcome, err := d.accounts.DeployContract(ctx, accountID, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrDeployFailed, err)
	}
	res := &DeployOutcome{Outcome: outcome}
	if err := outcome.RequireSuccess(); err != nil {
		return res, fmt.Errorf("%w: %w", interfaces.ErrDeployFailed, err)
	}
	d.log.Info("Contract deployed", "account", accountID, "size", len(code), "txHash", outcome.TxHash)

	if err := d.confirmer.AwaitConfirmation(ctx, outcome.TxHash, accountID); err != nil {
		d.log.Warn("Could not confirm deployment", "txHash", outcome.TxHash, "err", err)
	}

	view, err := d.accounts.ViewAccount(ctx, accountID)
	if err != nil {
		d.log.Warn("Could not read account balance", "account", accountID, "err", err)
		return res, nil
	}
	res.Balance = interfaces.FormatNearAmount(view.Amount)
	d.log.Info("Account balance", "account", accountID, "balance", res.Balance, "codeHash", view.CodeHash)
	return res, nil
}

// Initialize calls init({"owner_id": ownerID}) on accountID, signed by
// accountID, and expects an empty return value.
func (d *Deployer) Initialize(ctx context.Context, accountID, ownerID interfaces.AccountID, gas uint64) (*InitOutcome, error) {
	outcome, err := d.submitter.Submit(ctx, &interfaces.TransactionRequest{
		SignerID:   accountID,
		ReceiverID: accountID,
		MethodName: InitMethod,
		Args:       map[string]any{"owner_id": string(ownerID)},
		Gas:        gas,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrInitFailed, err)
	}

	res := &InitOutcome{Outcome: outcome, Validation: validator.ValidateInit(outcome)}
	if err := outcome.RequireSuccess(); err != nil {
		return res, fmt.Errorf("%w: %w", interfaces.ErrInitFailed, err)
	}
	if !res.Validation.OK {
		d.log.Warn("Unexpected init result", "account", accountID, "err", res.Validation.Err)
	}
	d.log.Info("Contract initialized", "account", accountID, "owner", ownerID, "txHash", outcome.TxHash)

	if err := d.confirmer.AwaitConfirmation(ctx, outcome.TxHash, accountID); err != nil {
		d.log.Warn("Could not confirm initialization", "txHash", outcome.TxHash, "err", err)
	}
	return res, nil
}
