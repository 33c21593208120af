// Package storage provides named-object storage with pluggable backends.
//
// The driver uses it for two things: loading inputs (the contract binary,
// optionally the recovery phrase) and persisting run reports. Backends are
// addressed by URI:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/commit-reveal/ (a bare path is treated as a file URI)
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=minio:9000
//   - ipfs://ipfs.example.com:5001/?timeout=30s
//   - vault://[token@]vault.example.com:8200/secret/near?tls=false
//   - github://owner/repo/dir?ref=main (read-only)
//
// A backend location names a collection; objects inside it are addressed by
// name. IPFS is content addressed, so its object names are CIDs and Store
// returns the CID it assigned.
//
// # Object URIs
//
// StorageBackendFactory.FetchURI accepts a full object URI, splits it into
// the collection and the object name, and fetches it:
//
//	wasm, err := factory.FetchURI(ctx, "github://near-examples/rng/res/contract.wasm?ref=main")
//	phrase, err := factory.FetchURI(ctx, "vault://vault:8200/secret/near/seed-phrase")
//
// # Redundancy
//
// MultiStorageBackend stores to every available backend and fetches from the
// first one that has the object. Run reports are written through it so that
// one unreachable sink does not lose the report.
//
// # Errors
//
// Backends report interfaces.ErrContentNotFound for missing objects,
// interfaces.ErrBackendUnavailable when the service cannot be reached and
// interfaces.ErrReadOnlyBackend for writes to read-only backends.
package storage
