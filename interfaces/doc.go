// Package interfaces defines the core types and interfaces of the driver,
// separating them from their implementations.
//
// # Ledger Types
//
// AccountID, NetworkID and NetworkConfig identify where transactions go.
// TransactionRequest describes a function call; TransactionOutcome is what
// the ledger returned for it. A Failure outcome is not a Go error: callers
// turn it into one with Outcome.Err, which yields a *TxFailure.
//
// # Keys
//
// PublicKey and KeyPair hold ed25519 keys in the "ed25519:<base58>" text
// form. Identity is the single signing identity of a run and KeyStore maps
// (network, account) pairs to it.
//
// # Collaborators
//
//   - TransactionSubmitter: signs and submits function calls
//   - AccountLifecycle: creates, deletes and deploys to accounts
//   - Confirmer: waits until a transaction is durably visible
//   - StorageBackend and StorageBackendFactory: named object storage for
//     contract binaries, secrets and run reports across file, S3, IPFS,
//     Vault and GitHub locations
//
// # Errors
//
// Sentinel errors are matched with errors.Is. Amounts are handled in yocto
// units with ParseNearAmount and FormatNearAmount.
package interfaces
