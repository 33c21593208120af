// Package main (cmd/commit-reveal) drives a commit-reveal contract on a NEAR
// network from the command line.
//
// Settings come from the environment (NEAR_SEED_PHRASE, NEAR_ACCOUNT_ID,
// NEXT_PUBLIC_contractId, ...) and can be overridden with flags. The network
// is testnet when the contract id mentions "testnet", mainnet otherwise.
//
// Commands:
//
//	run            - commit and reveal; with --deploy, recreate and deploy the contract first
//	provision      - delete and recreate the contract account
//	deploy         - upload the contract binary and call init
//	commit-reveal  - commit COMMIT_HASH, then reveal REVEAL_VALUE
//	reveal         - reveal a value committed by an earlier run
//	keys show      - print the public key derived from the seed phrase
//
// Every run prints its report as JSON and stores it under reports/<run-id>.json
// in each --report-store location.
//
// Example:
//
//	NEXT_PUBLIC_contractId=rng.alice.testnet NEAR_ACCOUNT_ID=alice.testnet \
//	  commit-reveal --report-store file://./out --status-addr 127.0.0.1:8080 \
//	  run --deploy --contract-wasm github://alice/rng/build/contract.wasm --strict
package main
