package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingConfig is returned when required configuration is absent. It is
	// always raised before any RPC activity.
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrInvalidSeedPhrase is returned when a recovery phrase cannot be parsed
	// into a private key.
	ErrInvalidSeedPhrase = errors.New("invalid seed phrase")

	// ErrInvalidKey is returned for malformed key strings.
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyNotFound is returned when the key store has no key for an account.
	ErrKeyNotFound = errors.New("key not found")

	// ErrAccountNotFound is returned by the RPC layer when the account does not exist.
	ErrAccountNotFound = errors.New("account does not exist")

	// ErrAccessKeyNotFound is returned when the account exists but the signing key is not attached to it.
	ErrAccessKeyNotFound = errors.New("access key does not exist")

	// ErrMalformedPayload is returned when an outcome payload is not valid
	// base64 or not valid JSON-quoted text.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrProtocol is returned when decoding is attempted on a Failure outcome.
	ErrProtocol = errors.New("protocol error")

	// ErrUnexpectedValue is returned when a decoded value does not have the expected shape.
	ErrUnexpectedValue = errors.New("unexpected value")

	// ErrCommitFailed is returned when the commit transaction outcome is a Failure.
	ErrCommitFailed = errors.New("commit failed")

	// ErrRevealFailed is returned when the reveal transaction outcome is a Failure.
	ErrRevealFailed = errors.New("reveal failed")

	// ErrNotCommitted is returned when reveal is requested before a successful commit.
	ErrNotCommitted = errors.New("reveal requested before a successful commit")

	// ErrDeployFailed is returned when the contract code upload fails.
	ErrDeployFailed = errors.New("contract deployment failed")

	// ErrInitFailed is returned when the contract init call fails.
	ErrInitFailed = errors.New("contract initialization failed")

	// ErrOutcomeNotFinal is returned when a transaction outcome is neither
	// Success nor Failure, e.g. still pending.
	ErrOutcomeNotFinal = errors.New("transaction outcome is not final")

	// ErrNotConfirmed is returned when a transaction could not be confirmed final in time.
	ErrNotConfirmed = errors.New("transaction not confirmed")

	// ErrContentNotFound is returned when a storage backend does not hold the requested object.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend cannot be reached.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrReadOnlyBackend is returned by Store on backends that cannot be written.
	ErrReadOnlyBackend = errors.New("storage backend is read-only")

	// ErrInvalidLocationURI is returned for unparseable storage location URIs.
	ErrInvalidLocationURI = errors.New("invalid location URI")
)

// TxFailure describes an on-chain Failure outcome. It is distinct from
// transport errors, which are returned as-is by the RPC layer.
type TxFailure struct {
	TxHash string
	Reason json.RawMessage
}

func (e *TxFailure) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.TxHash, string(e.Reason))
}
