// Package validator decodes function-call return values and checks them
// against the shape each commit-reveal step is expected to return.
//
// A successful outcome carries the method's return value as JSON, encoded in
// base64. A string return value is therefore base64 of a JSON-quoted string,
// while a boolean is base64 of the bare literal.
package validator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ruteri/commit-reveal-driver/interfaces"
)

// RevealValueLength is the length of a revealed hash: 32 bytes, hex encoded.
const RevealValueLength = 64

// DecodedValue is the decoded return value of a function call.
type DecodedValue struct {
	// Raw is the base64-decoded payload.
	Raw []byte
	// Text is the payload with JSON string quoting removed.
	Text string
}

// String returns the decoded text.
func (d DecodedValue) String() string {
	return d.Text
}

// Decode extracts the return value of a successful outcome. Failure outcomes
// are not decoded and yield ErrProtocol; pending outcomes yield
// ErrUnexpectedValue. Decoding the same outcome always gives the same value.
func Decode(outcome *interfaces.TransactionOutcome) (DecodedValue, error) {
	if outcome == nil {
		return DecodedValue{}, fmt.Errorf("%w: no outcome", interfaces.ErrUnexpectedValue)
	}
	switch outcome.Status {
	case interfaces.OutcomeFailure:
		return DecodedValue{}, fmt.Errorf("%w: %w", interfaces.ErrProtocol, outcome.Err())
	case interfaces.OutcomeSuccess:
	default:
		return DecodedValue{}, fmt.Errorf("%w: outcome is %s", interfaces.ErrUnexpectedValue, outcome.Status)
	}

	raw, err := base64.StdEncoding.DecodeString(outcome.SuccessValue)
	if err != nil {
		return DecodedValue{}, fmt.Errorf("%w: invalid base64: %v", interfaces.ErrMalformedPayload, err)
	}

	text, err := unquote(raw)
	if err != nil {
		return DecodedValue{}, err
	}
	return DecodedValue{Raw: raw, Text: text}, nil
}

func unquote(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: payload is not text", interfaces.ErrMalformedPayload)
	}
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return "", fmt.Errorf("%w: invalid quoted string: %v", interfaces.ErrMalformedPayload, err)
		}
		return out, nil
	}
	return strings.ReplaceAll(s, `"`, ""), nil
}

// Step names a validated transaction.
type Step string

const (
	StepInit   Step = "init"
	StepCommit Step = "commit"
	StepReveal Step = "reveal"
)

// Validation is the verdict on one outcome. A failed validation is a value,
// never a panic; Err explains why OK is false.
type Validation struct {
	Step  Step
	OK    bool
	Value string
	Err   error
}

func (v Validation) MarshalJSON() ([]byte, error) {
	out := struct {
		Step  Step   `json:"step"`
		OK    bool   `json:"ok"`
		Value string `json:"value"`
		Error string `json:"error,omitempty"`
	}{Step: v.Step, OK: v.OK, Value: v.Value}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	return json.Marshal(out)
}

// ValidateCommit expects the literal true.
func ValidateCommit(outcome *interfaces.TransactionOutcome) Validation {
	return validate(StepCommit, outcome, func(value string) error {
		if value != "true" {
			return fmt.Errorf("%w: commit returned %q, want true", interfaces.ErrUnexpectedValue, value)
		}
		return nil
	})
}

// ValidateReveal expects a 64 character value and reports it.
func ValidateReveal(outcome *interfaces.TransactionOutcome) Validation {
	return validate(StepReveal, outcome, func(value string) error {
		if n := utf8.RuneCountInString(value); n != RevealValueLength {
			return fmt.Errorf("%w: reveal returned %d characters, want %d", interfaces.ErrUnexpectedValue, n, RevealValueLength)
		}
		return nil
	})
}

// ValidateInit expects an empty return value.
func ValidateInit(outcome *interfaces.TransactionOutcome) Validation {
	return validate(StepInit, outcome, func(value string) error {
		if value != "" {
			return fmt.Errorf("%w: init returned %q, want nothing", interfaces.ErrUnexpectedValue, value)
		}
		return nil
	})
}

func validate(step Step, outcome *interfaces.TransactionOutcome, check func(string) error) Validation {
	decoded, err := Decode(outcome)
	if err != nil {
		return Validation{Step: step, Err: err}
	}
	if err := check(decoded.Text); err != nil {
		return Validation{Step: step, Value: decoded.Text, Err: err}
	}
	return Validation{Step: step, OK: true, Value: decoded.Text}
}
