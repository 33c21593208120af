package validator

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func success(payload string) *interfaces.TransactionOutcome {
	return &interfaces.TransactionOutcome{
		TxHash:       "h",
		Status:       interfaces.OutcomeSuccess,
		SuccessValue: base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

var revealHash = "73475cb40a568e8da8a045ced110137e159f890ac4da883b6b17dc651b3a8049"

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		outcome *interfaces.TransactionOutcome
		want    string
		wantErr error
	}{
		{name: "boolean literal", outcome: success("true"), want: "true"},
		{name: "quoted string", outcome: success(`"` + revealHash + `"`), want: revealHash},
		{name: "escaped quotes", outcome: success(`"a\"b"`), want: `a"b`},
		{name: "empty payload", outcome: success(""), want: ""},
		{
			name:    "invalid base64",
			outcome: &interfaces.TransactionOutcome{Status: interfaces.OutcomeSuccess, SuccessValue: "!!not base64!!"},
			wantErr: interfaces.ErrMalformedPayload,
		},
		{name: "unterminated quote", outcome: success(`"abc`), wantErr: interfaces.ErrMalformedPayload},
		{name: "binary payload", outcome: success("\xff\xfe"), wantErr: interfaces.ErrMalformedPayload},
		{
			name:    "failure outcome",
			outcome: &interfaces.TransactionOutcome{Status: interfaces.OutcomeFailure, SuccessValue: "!!", Failure: json.RawMessage(`{"ActionError":{}}`)},
			wantErr: interfaces.ErrProtocol,
		},
		{
			name:    "pending outcome",
			outcome: &interfaces.TransactionOutcome{Status: interfaces.OutcomePending},
			wantErr: interfaces.ErrUnexpectedValue,
		},
		{name: "nil outcome", wantErr: interfaces.ErrUnexpectedValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.outcome)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestDecode_Idempotent(t *testing.T) {
	outcome := success(`"` + revealHash + `"`)

	first, err := Decode(outcome)
	require.NoError(t, err)
	second, err := Decode(outcome)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecode_FailureIsNotDecoded(t *testing.T) {
	outcome := &interfaces.TransactionOutcome{
		TxHash:  "h",
		Status:  interfaces.OutcomeFailure,
		Failure: json.RawMessage(`{"ActionError":{"kind":{"FunctionCallError":{"ExecutionError":"no commit"}}}}`),
	}

	_, err := Decode(outcome)
	require.ErrorIs(t, err, interfaces.ErrProtocol)
	assert.NotErrorIs(t, err, interfaces.ErrMalformedPayload)

	var failure *interfaces.TxFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "h", failure.TxHash)
}

func TestValidateCommit(t *testing.T) {
	v := ValidateCommit(success("true"))
	assert.True(t, v.OK)
	assert.Equal(t, StepCommit, v.Step)
	assert.NoError(t, v.Err)

	v = ValidateCommit(success("false"))
	assert.False(t, v.OK)
	assert.Equal(t, "false", v.Value)
	assert.ErrorIs(t, v.Err, interfaces.ErrUnexpectedValue)

	v = ValidateCommit(&interfaces.TransactionOutcome{Status: interfaces.OutcomeSuccess, SuccessValue: "%%%"})
	assert.False(t, v.OK)
	assert.ErrorIs(t, v.Err, interfaces.ErrMalformedPayload)
}

func TestValidateReveal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
	}{
		{name: "64 characters quoted", payload: `"` + revealHash + `"`, ok: true},
		{name: "64 characters bare", payload: revealHash, ok: true},
		{name: "63 characters", payload: `"` + revealHash[:63] + `"`},
		{name: "65 characters", payload: `"` + revealHash + `0"`},
		{name: "empty", payload: `""`},
		{name: "quotes do not count", payload: `"` + strings.Repeat("a", 62) + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateReveal(success(tt.payload))
			assert.Equal(t, tt.ok, v.OK)
			assert.Equal(t, StepReveal, v.Step)
			if !tt.ok {
				assert.ErrorIs(t, v.Err, interfaces.ErrUnexpectedValue)
			}
		})
	}
}

func TestValidateReveal_ReportsValue(t *testing.T) {
	v := ValidateReveal(success(`"` + revealHash + `"`))
	require.True(t, v.OK)
	assert.Equal(t, revealHash, v.Value)
}

func TestValidateReveal_Failure(t *testing.T) {
	v := ValidateReveal(&interfaces.TransactionOutcome{Status: interfaces.OutcomeFailure, Failure: json.RawMessage(`"no commit"`)})
	assert.False(t, v.OK)
	assert.ErrorIs(t, v.Err, interfaces.ErrProtocol)
}

func TestValidateInit(t *testing.T) {
	assert.True(t, ValidateInit(success("")).OK)

	v := ValidateInit(success(`"unexpected"`))
	assert.False(t, v.OK)
	assert.ErrorIs(t, v.Err, interfaces.ErrUnexpectedValue)
}

func TestValidation_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ValidateCommit(success("false")))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "commit", out["step"])
	assert.Equal(t, false, out["ok"])
	assert.Contains(t, out["error"], "want true")
}
