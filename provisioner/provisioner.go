// Package provisioner resets the contract account: it deletes the account,
// recreates it under the funding account with the run's key, and funds it.
//
// The sequence is best effort. Each step is recorded in a Report as Skipped,
// Succeeded or Failed and a failed step never stops the next one, so a
// partially provisioned account is a possible, observable end state.
package provisioner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ruteri/commit-reveal-driver/interfaces"
)

// StepName identifies a provisioning step.
type StepName string

const (
	StepDelete StepName = "delete"
	StepCreate StepName = "create"
)

// StepStatus is the result kind of a step.
type StepStatus int

const (
	Skipped StepStatus = iota
	Succeeded
	Failed
)

func (s StepStatus) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StepResult records one step.
type StepResult struct {
	Step   StepName
	Status StepStatus
	TxHash string
	Err    error
}

func (r StepResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Step   StepName   `json:"step"`
		Status StepStatus `json:"status"`
		TxHash string     `json:"tx_hash,omitempty"`
		Error  string     `json:"error,omitempty"`
	}{Step: r.Step, Status: r.Status, TxHash: r.TxHash}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Report collects the step results of one reprovisioning.
type Report struct {
	FundingAccountID interfaces.AccountID `json:"funding_account_id"`
	TargetAccountID  interfaces.AccountID `json:"target_account_id"`
	Amount           string               `json:"amount"`
	Steps            []StepResult         `json:"steps"`
}

// Step returns the result of the named step.
func (r *Report) Step(name StepName) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// OK reports whether no step failed.
func (r *Report) OK() bool {
	for _, s := range r.Steps {
		if s.Status == Failed {
			return false
		}
	}
	return true
}

// Provisioner runs the reset sequence.
type Provisioner struct {
	accounts  interfaces.AccountLifecycle
	confirmer interfaces.Confirmer
	log       *slog.Logger
}

func New(accounts interfaces.AccountLifecycle, confirmer interfaces.Confirmer, log *slog.Logger) *Provisioner {
	if log == nil {
		log = slog.Default()
	}
	return &Provisioner{accounts: accounts, confirmer: confirmer, log: log}
}

// Reprovision deletes targetID (balance to fundingID), then recreates it
// under fundingID with publicKey as its full-access key and amount as its
// balance. Each step is followed by a confirmation wait.
func (p *Provisioner) Reprovision(ctx context.Context, fundingID, targetID interfaces.AccountID, publicKey interfaces.PublicKey, amount *big.Int) *Report {
	report := &Report{
		FundingAccountID: fundingID,
		TargetAccountID:  targetID,
		Amount:           interfaces.FormatNearAmount(amount),
	}

	outcome, err := p.accounts.DeleteAccount(ctx, targetID, fundingID)
	del := classifyDelete(outcome, err)
	p.record(report, del)
	p.settle(ctx, del.TxHash, targetID)

	outcome, err = p.accounts.CreateAccount(ctx, fundingID, targetID, publicKey, amount)
	create := classify(StepCreate, outcome, err)
	p.record(report, create)
	p.settle(ctx, create.TxHash, fundingID)

	return report
}

func (p *Provisioner) record(report *Report, res StepResult) {
	report.Steps = append(report.Steps, res)
	switch res.Status {
	case Failed:
		p.log.Error("Provisioning step failed", "step", res.Step, "account", report.TargetAccountID, "txHash", res.TxHash, "err", res.Err)
	case Skipped:
		p.log.Info("Provisioning step skipped", "step", res.Step, "account", report.TargetAccountID, "reason", res.Err)
	default:
		p.log.Info("Provisioning step succeeded", "step", res.Step, "account", report.TargetAccountID, "txHash", res.TxHash)
	}
}

func (p *Provisioner) settle(ctx context.Context, txHash string, signerID interfaces.AccountID) {
	if err := p.confirmer.AwaitConfirmation(ctx, txHash, signerID); err != nil {
		p.log.Warn("Could not confirm provisioning transaction", "txHash", txHash, "err", err)
	}
}

func classify(step StepName, outcome *interfaces.TransactionOutcome, err error) StepResult {
	res := StepResult{Step: step}
	if outcome != nil {
		res.TxHash = outcome.TxHash
	}
	if err == nil {
		err = outcome.RequireSuccess()
	}
	if err != nil {
		res.Status = Failed
		res.Err = err
		return res
	}
	res.Status = Succeeded
	return res
}

// classifyDelete treats a missing target account as nothing to delete.
func classifyDelete(outcome *interfaces.TransactionOutcome, err error) StepResult {
	res := classify(StepDelete, outcome, err)
	if res.Status != Failed {
		return res
	}
	if errors.Is(err, interfaces.ErrAccountNotFound) {
		res.Status = Skipped
		return res
	}
	if outcome != nil && strings.Contains(string(outcome.Failure), "AccountDoesNotExist") {
		res.Status = Skipped
	}
	return res
}
