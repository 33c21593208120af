package config

import (
	"testing"
	"time"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("NEAR_SEED_PHRASE", `"lamp ladder usage"`)
	t.Setenv("NEAR_ACCOUNT_ID", `"alice.testnet"`)
	t.Setenv(contractIDEnv, `"rng.alice.testnet"`)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lamp ladder usage", cfg.SeedPhrase)
	assert.Equal(t, interfaces.AccountID("alice.testnet"), cfg.FundingAccount())
	assert.Equal(t, interfaces.AccountID("rng.alice.testnet"), cfg.Contract())
	assert.Equal(t, uint64(300_000_000_000_000), cfg.Gas)
	assert.Equal(t, time.Second, cfg.SettleDelay)
	assert.Equal(t, DefaultCommitHash, cfg.CommitHash)
	assert.Equal(t, DefaultRevealValue, cfg.RevealValue)
	assert.Equal(t, ConfirmDelay, cfg.Confirm)
	assert.False(t, cfg.Deploy)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateDeploy())

	funding, err := cfg.Funding()
	require.NoError(t, err)
	assert.Equal(t, "5000000000000000000000000", funding.String())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("NEAR_RPC_URL", "http://127.0.0.1:3030")
	t.Setenv("SETTLE_DELAY", "250ms")
	t.Setenv("REPORT_STORE", "file://./reports,s3://bucket/runs")
	t.Setenv("CONFIRM", "poll")
	t.Setenv("DEPLOY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, []string{"file://./reports", "s3://bucket/runs"}, cfg.ReportStores)
	assert.True(t, cfg.Deploy)
	assert.Equal(t, "http://127.0.0.1:3030", cfg.Network().RPCEndpoint)
	assert.Equal(t, interfaces.Testnet, cfg.Network().NetworkID)
	require.NoError(t, cfg.Validate())
}

func TestValidate_Missing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		missing string
	}{
		{
			name:    "no contract",
			cfg:     Config{AccountID: "alice.testnet", SeedPhrase: "x", Confirm: ConfirmDelay},
			missing: contractIDEnv,
		},
		{
			name:    "no account",
			cfg:     Config{ContractID: "rng.testnet", SeedPhrase: "x", Confirm: ConfirmDelay},
			missing: "NEAR_ACCOUNT_ID",
		},
		{
			name:    "no seed phrase",
			cfg:     Config{ContractID: "rng.testnet", AccountID: "alice.testnet", Confirm: ConfirmDelay},
			missing: "NEAR_SEED_PHRASE",
		},
		{
			name:    "bad confirm mode",
			cfg:     Config{ContractID: "rng.testnet", AccountID: "alice.testnet", SeedPhrase: "x", Confirm: "wait"},
			missing: "wait",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.ErrorIs(t, err, interfaces.ErrMissingConfig)
			assert.ErrorContains(t, err, tt.missing)
		})
	}
}

func TestValidate_SeedPhraseURI(t *testing.T) {
	cfg := Config{
		ContractID:    "rng.testnet",
		AccountID:     "alice.testnet",
		SeedPhraseURI: "vault://vault:8200/secret/near/seed-phrase",
		Confirm:       ConfirmPoll,
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidateDeploy(t *testing.T) {
	cfg := Config{ContractWasm: "contract.wasm", FundingAmount: "five"}
	assert.ErrorIs(t, cfg.ValidateDeploy(), interfaces.ErrMissingConfig)

	cfg = Config{FundingAmount: "5"}
	assert.ErrorIs(t, cfg.ValidateDeploy(), interfaces.ErrMissingConfig)
}

func TestNetworkFor(t *testing.T) {
	tests := []struct {
		contractID string
		expected   interfaces.NetworkID
		rpc        string
	}{
		{"rng.alice.testnet", interfaces.Testnet, "https://rpc.testnet.near.org"},
		{"rng.TESTNET", interfaces.Testnet, "https://rpc.testnet.near.org"},
		{"testnet-rng.near", interfaces.Testnet, "https://rpc.testnet.near.org"},
		{"rng.alice.near", interfaces.Mainnet, "https://rpc.near.org"},
		{"", interfaces.Mainnet, "https://rpc.near.org"},
	}

	for _, tt := range tests {
		t.Run(tt.contractID, func(t *testing.T) {
			network := NetworkFor(tt.contractID)
			assert.Equal(t, tt.expected, network.NetworkID)
			assert.Equal(t, tt.rpc, network.RPCEndpoint)
		})
	}

	assert.Equal(t, "https://testnet.nearblocks.io/txns/abc", NetworkFor("x.testnet").TxURL("abc"))
	assert.Equal(t, "https://mynearwallet.com/", NetworkFor("x.near").WalletURL)
}
