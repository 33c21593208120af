package interfaces

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionOutcome_RequireSuccess(t *testing.T) {
	var nilOutcome *TransactionOutcome
	assert.ErrorIs(t, nilOutcome.RequireSuccess(), ErrOutcomeNotFinal)

	assert.NoError(t, (&TransactionOutcome{Status: OutcomeSuccess}).RequireSuccess())

	err := (&TransactionOutcome{TxHash: "t1", Status: OutcomePending}).RequireSuccess()
	assert.ErrorIs(t, err, ErrOutcomeNotFinal)
	assert.Contains(t, err.Error(), "t1 is pending")

	err = (&TransactionOutcome{TxHash: "t2", Status: OutcomeFailure, Failure: json.RawMessage(`"boom"`)}).RequireSuccess()
	var failure *TxFailure
	assert.ErrorAs(t, err, &failure)
	assert.NotErrorIs(t, err, ErrOutcomeNotFinal)
}
