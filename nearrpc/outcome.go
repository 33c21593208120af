package nearrpc

import (
	"encoding/json"
	"fmt"

	"github.com/ruteri/commit-reveal-driver/interfaces"
)

// FinalExecutionOutcome is the node's view of an executed transaction.
type FinalExecutionOutcome struct {
	Status      json.RawMessage `json:"status"`
	Transaction struct {
		Hash     string `json:"hash"`
		SignerID string `json:"signer_id"`
	} `json:"transaction"`
	TransactionOutcome ExecutionOutcomeWithID   `json:"transaction_outcome"`
	ReceiptsOutcome    []ExecutionOutcomeWithID `json:"receipts_outcome"`
}

// ExecutionOutcomeWithID is one step of a transaction's execution.
type ExecutionOutcomeWithID struct {
	ID      string `json:"id"`
	Outcome struct {
		Logs []string `json:"logs"`
	} `json:"outcome"`
}

type executionStatus struct {
	SuccessValue *string        `json:"SuccessValue"`
	Failure      json.RawMessage `json:"Failure"`
}

// Outcome converts the node response into the driver's outcome type.
func (o *FinalExecutionOutcome) Outcome() (*interfaces.TransactionOutcome, error) {
	out := &interfaces.TransactionOutcome{
		TxHash:   o.Transaction.Hash,
		SignerID: interfaces.AccountID(o.Transaction.SignerID),
	}
	out.Logs = append(out.Logs, o.TransactionOutcome.Outcome.Logs...)
	for _, r := range o.ReceiptsOutcome {
		out.Logs = append(out.Logs, r.Outcome.Logs...)
	}

	if len(o.Status) == 0 {
		return nil, fmt.Errorf("transaction outcome has no status")
	}

	var name string
	if err := json.Unmarshal(o.Status, &name); err == nil {
		switch name {
		case "NotStarted", "Started":
			out.Status = interfaces.OutcomePending
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected transaction status %q", name)
		}
	}

	var status executionStatus
	if err := json.Unmarshal(o.Status, &status); err != nil {
		return nil, fmt.Errorf("invalid transaction status: %w", err)
	}
	switch {
	case len(status.Failure) > 0 && string(status.Failure) != "null":
		out.Status = interfaces.OutcomeFailure
		out.Failure = status.Failure
	case status.SuccessValue != nil:
		out.Status = interfaces.OutcomeSuccess
		out.SuccessValue = *status.SuccessValue
	default:
		return nil, fmt.Errorf("unexpected transaction status %s", string(o.Status))
	}
	return out, nil
}
