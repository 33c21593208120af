// Package mocks provides testify mocks of the collaborator interfaces.
package mocks

import (
	"context"
	"math/big"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockSubmitter mocks interfaces.TransactionSubmitter.
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, req *interfaces.TransactionRequest) (*interfaces.TransactionOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.TransactionOutcome), args.Error(1)
}

// MockAccountLifecycle mocks interfaces.AccountLifecycle.
type MockAccountLifecycle struct {
	mock.Mock
}

func (m *MockAccountLifecycle) DeleteAccount(ctx context.Context, accountID, beneficiaryID interfaces.AccountID) (*interfaces.TransactionOutcome, error) {
	args := m.Called(ctx, accountID, beneficiaryID)
	return outcome(args)
}

func (m *MockAccountLifecycle) CreateAccount(ctx context.Context, funderID, newAccountID interfaces.AccountID, publicKey interfaces.PublicKey, amount *big.Int) (*interfaces.TransactionOutcome, error) {
	args := m.Called(ctx, funderID, newAccountID, publicKey, amount)
	return outcome(args)
}

func (m *MockAccountLifecycle) DeployContract(ctx context.Context, accountID interfaces.AccountID, code []byte) (*interfaces.TransactionOutcome, error) {
	args := m.Called(ctx, accountID, code)
	return outcome(args)
}

func (m *MockAccountLifecycle) ViewAccount(ctx context.Context, accountID interfaces.AccountID) (*interfaces.AccountView, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.AccountView), args.Error(1)
}

// MockConfirmer mocks interfaces.Confirmer.
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) AwaitConfirmation(ctx context.Context, txHash string, signerID interfaces.AccountID) error {
	args := m.Called(ctx, txHash, signerID)
	return args.Error(0)
}

func outcome(args mock.Arguments) (*interfaces.TransactionOutcome, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.TransactionOutcome), args.Error(1)
}
