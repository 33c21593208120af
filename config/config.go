// Package config resolves the driver's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/ruteri/commit-reveal-driver/interfaces"
	"golang.org/x/term"
)

const (
	// DefaultCommitHash is sha256("42"), matching DefaultRevealValue.
	DefaultCommitHash  = "73475cb40a568e8da8a045ced110137e159f890ac4da883b6b17dc651b3a8049"
	DefaultRevealValue = "42"

	ConfirmDelay = "delay"
	ConfirmPoll  = "poll"
)

// contractIDEnv is read directly: envconfig upper-cases keys and this
// variable is conventionally mixed case.
const contractIDEnv = "NEXT_PUBLIC_contractId"

// Config contains all configuration parameters for a run.
type Config struct {
	SeedPhrase    string        `envconfig:"NEAR_SEED_PHRASE"`
	SeedPhraseURI string        `envconfig:"SEED_PHRASE_URI"`
	AccountID     string        `envconfig:"NEAR_ACCOUNT_ID"`
	ContractID    string        `envconfig:"NEXT_PUBLIC_CONTRACTID"`
	RPCURL        string        `envconfig:"NEAR_RPC_URL"`
	ContractWasm  string        `envconfig:"CONTRACT_WASM" default:"./contract/target/near/contract.wasm"`
	Gas           uint64        `envconfig:"GAS" default:"300000000000000"`
	FundingAmount string        `envconfig:"FUNDING_AMOUNT" default:"5"`
	SettleDelay   time.Duration `envconfig:"SETTLE_DELAY" default:"1s"`
	Confirm       string        `envconfig:"CONFIRM" default:"delay"`
	CommitHash    string        `envconfig:"COMMIT_HASH" default:"73475cb40a568e8da8a045ced110137e159f890ac4da883b6b17dc651b3a8049"`
	RevealValue   string        `envconfig:"REVEAL_VALUE" default:"42"`
	Deploy        bool          `envconfig:"DEPLOY" default:"false"`
	ReportStores  []string      `envconfig:"REPORT_STORE"`
	VaultToken    string        `envconfig:"VAULT_TOKEN"`
	GitHubToken   string        `envconfig:"GITHUB_TOKEN"`
}

// Load reads the configuration from the environment. Quote characters are
// stripped from identifiers and the seed phrase, as .env files often keep them.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.ContractID == "" {
		cfg.ContractID = os.Getenv(contractIDEnv)
	}

	cfg.SeedPhrase = stripQuotes(cfg.SeedPhrase)
	cfg.AccountID = stripQuotes(cfg.AccountID)
	cfg.ContractID = stripQuotes(cfg.ContractID)
	return cfg, nil
}

func stripQuotes(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// Validate checks the settings every command needs. It never touches the
// network, so precondition failures surface before any RPC.
func (c *Config) Validate() error {
	var missing []string
	if c.ContractID == "" {
		missing = append(missing, contractIDEnv)
	}
	if c.AccountID == "" {
		missing = append(missing, "NEAR_ACCOUNT_ID")
	}
	if c.SeedPhrase == "" && c.SeedPhraseURI == "" {
		missing = append(missing, "NEAR_SEED_PHRASE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch c.Confirm {
	case ConfirmDelay, ConfirmPoll:
	default:
		return fmt.Errorf("%w: unknown confirmation mode %q", interfaces.ErrMissingConfig, c.Confirm)
	}
	return nil
}

// ValidateDeploy checks the extra settings needed to provision and deploy.
func (c *Config) ValidateDeploy() error {
	if c.ContractWasm == "" {
		return fmt.Errorf("%w: CONTRACT_WASM", interfaces.ErrMissingConfig)
	}
	if _, err := c.Funding(); err != nil {
		return fmt.Errorf("%w: FUNDING_AMOUNT: %v", interfaces.ErrMissingConfig, err)
	}
	return nil
}

// Funding returns the funding amount in yocto units.
func (c *Config) Funding() (*big.Int, error) {
	return interfaces.ParseNearAmount(c.FundingAmount)
}

// FundingAccount is the account that signs provisioning transactions.
func (c *Config) FundingAccount() interfaces.AccountID {
	return interfaces.AccountID(c.AccountID)
}

// Contract is the account the contract lives at.
func (c *Config) Contract() interfaces.AccountID {
	return interfaces.AccountID(c.ContractID)
}

// Network selects endpoints from the contract id, honouring an RPC override.
func (c *Config) Network() interfaces.NetworkConfig {
	network := NetworkFor(c.ContractID)
	if c.RPCURL != "" {
		network.RPCEndpoint = c.RPCURL
	}
	return network
}

var testnetMarker = regexp.MustCompile(`(?i)testnet`)

// NetworkFor returns testnet endpoints when the contract id mentions
// "testnet" in any case, and mainnet endpoints otherwise.
func NetworkFor(contractID string) interfaces.NetworkConfig {
	if testnetMarker.MatchString(contractID) {
		return interfaces.NetworkConfig{
			NetworkID:   interfaces.Testnet,
			RPCEndpoint: "https://rpc.testnet.near.org",
			WalletURL:   "https://testnet.mynearwallet.com/",
			ExplorerURL: "https://testnet.nearblocks.io",
		}
	}
	return interfaces.NetworkConfig{
		NetworkID:   interfaces.Mainnet,
		RPCEndpoint: "https://rpc.near.org",
		WalletURL:   "https://mynearwallet.com/",
		ExplorerURL: "https://nearblocks.io",
	}
}

// PromptSeedPhrase reads the recovery phrase from the terminal without echo
// and stores it in the config.
func (c *Config) PromptSeedPhrase() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run interactively to enter the seed phrase")
	}
	fmt.Fprint(os.Stderr, "Enter seed phrase: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read seed phrase: %w", err)
	}
	defer clear(raw)

	phrase := strings.TrimSpace(string(raw))
	if phrase == "" {
		return fmt.Errorf("%w: empty seed phrase", interfaces.ErrInvalidSeedPhrase)
	}
	c.SeedPhrase = phrase
	return nil
}
