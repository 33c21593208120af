// Package commitreveal drives the two-phase commit-reveal exchange with the
// contract.
//
// The driver is a small state machine:
//
//	Idle --commit ok--> Committed --reveal ok--> Revealed
//	  \                     \
//	   +--commit failed--> Failed <--reveal failed
//
// Reveal is only ever submitted from Committed, and Committed is only reached
// on a Success outcome for commit. Between the two calls the driver waits on
// the injected confirmer so that the commit is visible before the reveal.
// Neither call is retried.
package commitreveal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/validator"
	"go.uber.org/atomic"
)

const (
	CommitMethod = "commit"
	RevealMethod = "reveal"
)

// DefaultGas is the gas allowance for commit and reveal calls (300 Tgas).
const DefaultGas uint64 = 300_000_000_000_000

// State is the driver's position in the exchange.
type State int32

const (
	Idle State = iota
	Committed
	Revealed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Committed:
		return "committed"
	case Revealed:
		return "revealed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrInvalidTransition is returned when a call does not fit the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// Result holds both outcomes of a run and their validations.
type Result struct {
	Commit           *interfaces.TransactionOutcome `json:"commit,omitempty"`
	CommitValidation *validator.Validation          `json:"commit_validation,omitempty"`
	Reveal           *interfaces.TransactionOutcome `json:"reveal,omitempty"`
	RevealValidation *validator.Validation          `json:"reveal_validation,omitempty"`
}

// OK reports whether both steps were validated successfully.
func (r *Result) OK() bool {
	return r.CommitValidation != nil && r.CommitValidation.OK &&
		r.RevealValidation != nil && r.RevealValidation.OK
}

// Driver submits commit and reveal calls signed by the contract account
// itself. A Driver runs one exchange; it is not reusable after Revealed or Failed.
type Driver struct {
	submitter  interfaces.TransactionSubmitter
	confirmer  interfaces.Confirmer
	contractID interfaces.AccountID
	gas        uint64
	log        *slog.Logger

	mu    sync.Mutex
	state *atomic.Int32
}

func New(submitter interfaces.TransactionSubmitter, confirmer interfaces.Confirmer, contractID interfaces.AccountID, gas uint64, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	if gas == 0 {
		gas = DefaultGas
	}
	return &Driver{
		submitter:  submitter,
		confirmer:  confirmer,
		contractID: contractID,
		gas:        gas,
		log:        log,
		state:      atomic.NewInt32(int32(Idle)),
	}
}

// State returns the current state. Safe for concurrent use.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	prev := State(d.state.Swap(int32(s)))
	d.log.Debug("Driver state changed", "from", prev, "to", s)
}

// ResumeCommitted moves an Idle driver to Committed, for revealing a value
// that was committed by an earlier run.
func (d *Driver) ResumeCommitted() error {
	if !d.state.CompareAndSwap(int32(Idle), int32(Committed)) {
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, d.State())
	}
	return nil
}

// Commit submits commit({"commit_hash": commitHash}). Any outcome other than
// Success is returned together with ErrCommitFailed.
func (d *Driver) Commit(ctx context.Context, commitHash string) (*interfaces.TransactionOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s := d.State(); s != Idle {
		return nil, fmt.Errorf("%w: commit from %s", ErrInvalidTransition, s)
	}

	outcome, err := d.call(ctx, CommitMethod, map[string]any{"commit_hash": commitHash})
	if err != nil {
		d.setState(Failed)
		return nil, fmt.Errorf("%w: %w", interfaces.ErrCommitFailed, err)
	}
	if err := outcome.RequireSuccess(); err != nil {
		d.setState(Failed)
		return outcome, fmt.Errorf("%w: %w", interfaces.ErrCommitFailed, err)
	}

	d.setState(Committed)
	return outcome, nil
}

// Reveal submits reveal({"commit_value": value}). It refuses to submit
// anything unless the driver is Committed.
func (d *Driver) Reveal(ctx context.Context, value string) (*interfaces.TransactionOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s := d.State(); s != Committed {
		return nil, fmt.Errorf("%w: driver is %s", interfaces.ErrNotCommitted, s)
	}

	outcome, err := d.call(ctx, RevealMethod, map[string]any{"commit_value": value})
	if err != nil {
		d.setState(Failed)
		return nil, fmt.Errorf("%w: %w", interfaces.ErrRevealFailed, err)
	}
	if err := outcome.RequireSuccess(); err != nil {
		d.setState(Failed)
		return outcome, fmt.Errorf("%w: %w", interfaces.ErrRevealFailed, err)
	}

	d.setState(Revealed)
	return outcome, nil
}

// Run commits commitHash, waits for confirmation, reveals revealValue and
// validates both outcomes. Protocol failures end the run with an error;
// validation failures are reported in the Result.
func (d *Driver) Run(ctx context.Context, commitHash, revealValue string) (*Result, error) {
	res := &Result{}

	commit, err := d.Commit(ctx, commitHash)
	res.Commit = commit
	if err != nil {
		return res, err
	}
	cv := validator.ValidateCommit(commit)
	res.CommitValidation = &cv
	d.logValidation(cv)

	if err := d.confirmer.AwaitConfirmation(ctx, commit.TxHash, d.contractID); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		d.log.Warn("Could not confirm commit, revealing anyway", "txHash", commit.TxHash, "err", err)
	}

	reveal, rv, err := d.RevealAndValidate(ctx, revealValue)
	res.Reveal = reveal
	if err != nil {
		return res, err
	}
	res.RevealValidation = rv
	return res, nil
}

// RevealAndValidate reveals value and validates the returned hash. The
// validation is nil when the reveal itself failed.
func (d *Driver) RevealAndValidate(ctx context.Context, value string) (*interfaces.TransactionOutcome, *validator.Validation, error) {
	reveal, err := d.Reveal(ctx, value)
	if err != nil {
		return reveal, nil, err
	}
	rv := validator.ValidateReveal(reveal)
	d.logValidation(rv)
	return reveal, &rv, nil
}

func (d *Driver) call(ctx context.Context, method string, args map[string]any) (*interfaces.TransactionOutcome, error) {
	d.log.Info("Calling contract", "contract", d.contractID, "method", method)
	return d.submitter.Submit(ctx, &interfaces.TransactionRequest{
		SignerID:   d.contractID,
		ReceiverID: d.contractID,
		MethodName: method,
		Args:       args,
		Gas:        d.gas,
	})
}

func (d *Driver) logValidation(v validator.Validation) {
	if v.OK {
		d.log.Info("Validation passed", "step", v.Step, "value", v.Value)
		return
	}
	d.log.Error("Validation failed", "step", v.Step, "value", v.Value, "err", v.Err)
}
