package commitreveal

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ruteri/commit-reveal-driver/account"
	"github.com/ruteri/commit-reveal-driver/confirm"
	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/keys"
	"github.com/ruteri/commit-reveal-driver/mocks"
	"github.com/ruteri/commit-reveal-driver/nearrpc"
	"github.com/ruteri/commit-reveal-driver/nearrpc/nearrpctest"
	"github.com/ruteri/commit-reveal-driver/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	contract    = interfaces.AccountID("rng.alice.testnet")
	commitHash  = "73475cb40a568e8da8a045ced110137e159f890ac4da883b6b17dc651b3a8049"
	revealValue = "42"
)

func successValue(payload string) *interfaces.TransactionOutcome {
	return &interfaces.TransactionOutcome{
		Status:       interfaces.OutcomeSuccess,
		SuccessValue: base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

func isMethod(name string) any {
	return mock.MatchedBy(func(req *interfaces.TransactionRequest) bool {
		return req.MethodName == name && req.SignerID == contract && req.ReceiverID == contract && req.Gas == DefaultGas
	})
}

func newDriver() (*Driver, *mocks.MockSubmitter, *mocks.MockConfirmer) {
	submitter := new(mocks.MockSubmitter)
	confirmer := new(mocks.MockConfirmer)
	confirmer.On("AwaitConfirmation", mock.Anything, mock.Anything, contract).Return(nil)
	return New(submitter, confirmer, contract, 0, nil), submitter, confirmer
}

func TestRun(t *testing.T) {
	d, submitter, confirmer := newDriver()

	commit := successValue("true")
	commit.TxHash = "c1"
	var order []string
	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*interfaces.TransactionRequest)
			assert.Equal(t, commitHash, req.Args["commit_hash"])
			order = append(order, "commit")
		}).
		Return(commit, nil).Once()
	submitter.On("Submit", mock.Anything, isMethod(RevealMethod)).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*interfaces.TransactionRequest)
			assert.Equal(t, revealValue, req.Args["commit_value"])
			order = append(order, "reveal")
		}).
		Return(successValue(`"`+commitHash+`"`), nil).Once()

	res, err := d.Run(context.Background(), commitHash, revealValue)
	require.NoError(t, err)

	assert.Equal(t, []string{"commit", "reveal"}, order)
	assert.Equal(t, Revealed, d.State())
	assert.True(t, res.OK())
	assert.Equal(t, "true", res.CommitValidation.Value)
	assert.Equal(t, commitHash, res.RevealValidation.Value)
	confirmer.AssertCalled(t, "AwaitConfirmation", mock.Anything, "c1", contract)
}

func TestRun_CommitFailureNeverReveals(t *testing.T) {
	d, submitter, _ := newDriver()

	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).Return(&interfaces.TransactionOutcome{
		TxHash:  "c1",
		Status:  interfaces.OutcomeFailure,
		Failure: json.RawMessage(`{"ActionError":{}}`),
	}, nil).Once()

	res, err := d.Run(context.Background(), commitHash, revealValue)
	require.ErrorIs(t, err, interfaces.ErrCommitFailed)
	var failure *interfaces.TxFailure
	assert.ErrorAs(t, err, &failure)

	assert.Equal(t, Failed, d.State())
	assert.NotNil(t, res.Commit)
	assert.Nil(t, res.Reveal)
	submitter.AssertNumberOfCalls(t, "Submit", 1)
}

func TestRun_CommitTransportError(t *testing.T) {
	d, submitter, _ := newDriver()
	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).Return(nil, errors.New("connection refused")).Once()

	_, err := d.Run(context.Background(), commitHash, revealValue)
	assert.ErrorIs(t, err, interfaces.ErrCommitFailed)
	assert.Equal(t, Failed, d.State())
	submitter.AssertNumberOfCalls(t, "Submit", 1)
}

func TestRun_UnexpectedRevealIsReported(t *testing.T) {
	d, submitter, _ := newDriver()
	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).Return(successValue("true"), nil).Once()
	submitter.On("Submit", mock.Anything, isMethod(RevealMethod)).Return(successValue(`"short"`), nil).Once()

	res, err := d.Run(context.Background(), commitHash, revealValue)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.False(t, res.RevealValidation.OK)
	assert.ErrorIs(t, res.RevealValidation.Err, interfaces.ErrUnexpectedValue)
}

func TestRun_PendingCommitNeverReveals(t *testing.T) {
	d, submitter, confirmer := newDriver()
	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).
		Return(&interfaces.TransactionOutcome{TxHash: "c1", Status: interfaces.OutcomePending}, nil).Once()

	res, err := d.Run(context.Background(), commitHash, revealValue)
	require.ErrorIs(t, err, interfaces.ErrCommitFailed)
	assert.ErrorIs(t, err, interfaces.ErrOutcomeNotFinal)

	assert.Equal(t, Failed, d.State())
	assert.Nil(t, res.CommitValidation)
	assert.Nil(t, res.Reveal)
	submitter.AssertNumberOfCalls(t, "Submit", 1)
	confirmer.AssertNotCalled(t, "AwaitConfirmation", mock.Anything, mock.Anything, mock.Anything)
}

func TestReveal_PendingOutcomeFails(t *testing.T) {
	d, submitter, _ := newDriver()
	require.NoError(t, d.ResumeCommitted())
	submitter.On("Submit", mock.Anything, isMethod(RevealMethod)).
		Return(&interfaces.TransactionOutcome{TxHash: "r1", Status: interfaces.OutcomePending}, nil).Once()

	outcome, v, err := d.RevealAndValidate(context.Background(), revealValue)
	assert.ErrorIs(t, err, interfaces.ErrRevealFailed)
	assert.ErrorIs(t, err, interfaces.ErrOutcomeNotFinal)
	assert.Equal(t, "r1", outcome.TxHash)
	assert.Nil(t, v)
	assert.Equal(t, Failed, d.State())
}

func TestRun_UnexpectedCommitIsReported(t *testing.T) {
	d, submitter, _ := newDriver()
	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).Return(successValue("false"), nil).Once()
	submitter.On("Submit", mock.Anything, isMethod(RevealMethod)).Return(successValue(`"`+commitHash+`"`), nil).Once()

	res, err := d.Run(context.Background(), commitHash, revealValue)
	require.NoError(t, err)
	assert.False(t, res.OK())

	require.NotNil(t, res.CommitValidation)
	assert.Equal(t, validator.StepCommit, res.CommitValidation.Step)
	assert.False(t, res.CommitValidation.OK)
	assert.Equal(t, "false", res.CommitValidation.Value)
	assert.ErrorIs(t, res.CommitValidation.Err, interfaces.ErrUnexpectedValue)

	require.NotNil(t, res.RevealValidation)
	assert.Equal(t, validator.StepReveal, res.RevealValidation.Step)
	assert.True(t, res.RevealValidation.OK)
	assert.NotSame(t, res.CommitValidation, res.RevealValidation)
}

func TestRun_ConfirmationIsAdvisory(t *testing.T) {
	submitter := new(mocks.MockSubmitter)
	confirmer := new(mocks.MockConfirmer)
	confirmer.On("AwaitConfirmation", mock.Anything, mock.Anything, contract).Return(interfaces.ErrNotConfirmed)
	d := New(submitter, confirmer, contract, 0, nil)

	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).Return(successValue("true"), nil).Once()
	submitter.On("Submit", mock.Anything, isMethod(RevealMethod)).Return(successValue(`"`+commitHash+`"`), nil).Once()

	_, err := d.Run(context.Background(), commitHash, revealValue)
	require.NoError(t, err)
	assert.Equal(t, Revealed, d.State())
}

func TestRun_CancelledWhileConfirming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	submitter := new(mocks.MockSubmitter)
	confirmer := new(mocks.MockConfirmer)
	confirmer.On("AwaitConfirmation", mock.Anything, mock.Anything, contract).
		Run(func(mock.Arguments) { cancel() }).
		Return(context.Canceled)
	d := New(submitter, confirmer, contract, 0, nil)
	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).Return(successValue("true"), nil).Once()

	_, err := d.Run(ctx, commitHash, revealValue)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Committed, d.State())
	submitter.AssertNumberOfCalls(t, "Submit", 1)
}

func TestReveal_RequiresCommit(t *testing.T) {
	d, submitter, _ := newDriver()

	_, err := d.Reveal(context.Background(), revealValue)
	assert.ErrorIs(t, err, interfaces.ErrNotCommitted)
	assert.Equal(t, Idle, d.State())
	submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestReveal_RejectedByContract(t *testing.T) {
	d, submitter, _ := newDriver()
	require.NoError(t, d.ResumeCommitted())

	rejected := &interfaces.TransactionOutcome{
		TxHash:  "r1",
		Status:  interfaces.OutcomeFailure,
		Failure: json.RawMessage(`{"ActionError":{"kind":{"FunctionCallError":{"ExecutionError":"no commit found"}}}}`),
	}
	submitter.On("Submit", mock.Anything, isMethod(RevealMethod)).Return(rejected, nil).Once()

	outcome, err := d.Reveal(context.Background(), revealValue)
	assert.ErrorIs(t, err, interfaces.ErrRevealFailed)
	assert.Equal(t, Failed, d.State())

	_, err = validator.Decode(outcome)
	assert.ErrorIs(t, err, interfaces.ErrProtocol)
	assert.NotErrorIs(t, err, interfaces.ErrMalformedPayload)
}

func TestTransitions(t *testing.T) {
	d, submitter, _ := newDriver()
	submitter.On("Submit", mock.Anything, isMethod(CommitMethod)).Return(successValue("true"), nil).Once()

	_, err := d.Commit(context.Background(), commitHash)
	require.NoError(t, err)
	assert.Equal(t, Committed, d.State())

	_, err = d.Commit(context.Background(), commitHash)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, d.ResumeCommitted(), ErrInvalidTransition)
}

// The following run against an in-process ledger node.

func newLedger(t *testing.T) (*nearrpctest.Node, *account.Manager) {
	t.Helper()
	node := nearrpctest.NewNode()
	t.Cleanup(node.Close)

	client, err := nearrpc.Dial(context.Background(), node.URL(), nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	kp := interfaces.NewKeyPair(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, ed25519.SeedSize)))
	node.AddAccount(contract, kp.PublicKey, big.NewInt(1_000_000))
	ks := keys.Register(&interfaces.Identity{AccountID: "alice.testnet", KeyPair: kp}, interfaces.Testnet, contract)

	m := account.NewManager(client, ks, interfaces.NetworkConfig{NetworkID: interfaces.Testnet}, nil)
	_, err = m.DeployContract(context.Background(), contract, []byte("wasm"))
	require.NoError(t, err)
	return node, m
}

func TestRun_Ledger(t *testing.T) {
	node, m := newLedger(t)
	d := New(m, confirm.FixedDelay{}, contract, 0, nil)

	res, err := d.Run(context.Background(), commitHash, revealValue)
	require.NoError(t, err)

	assert.True(t, res.CommitValidation.OK)
	assert.Equal(t, "true", res.CommitValidation.Value)
	assert.True(t, res.RevealValidation.OK)
	assert.Len(t, res.RevealValidation.Value, 64)
	// The committed hash is the SHA-256 of the revealed value.
	assert.Equal(t, commitHash, res.RevealValidation.Value)
	assert.Equal(t, []string{"commit", "reveal"}, node.MethodNames())
}

func TestReveal_LedgerRejectsWithoutCommit(t *testing.T) {
	_, m := newLedger(t)
	d := New(m, confirm.FixedDelay{}, contract, 0, nil)
	require.NoError(t, d.ResumeCommitted())

	outcome, err := d.Reveal(context.Background(), revealValue)
	require.ErrorIs(t, err, interfaces.ErrRevealFailed)
	require.NotNil(t, outcome)
	assert.Equal(t, interfaces.OutcomeFailure, outcome.Status)

	v := validator.ValidateReveal(outcome)
	assert.False(t, v.OK)
	assert.ErrorIs(t, v.Err, interfaces.ErrProtocol)
}
