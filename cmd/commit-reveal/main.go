package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/commit-reveal-driver/cmd/flags"
	"github.com/ruteri/commit-reveal-driver/common"
	"github.com/ruteri/commit-reveal-driver/config"
	"github.com/ruteri/commit-reveal-driver/httpserver"
	"github.com/ruteri/commit-reveal-driver/keys"
	"github.com/ruteri/commit-reveal-driver/runner"
	"github.com/ruteri/commit-reveal-driver/storage"
	"github.com/urfave/cli/v2"
)

var revealValueFlag = &cli.StringFlag{
	Name:  "value",
	Usage: "value to reveal, overrides REVEAL_VALUE",
}

var commitHashFlag = &cli.StringFlag{
	Name:  "commit-hash",
	Usage: "hash to commit, overrides COMMIT_HASH",
}

func main() {
	app := &cli.App{
		Name:    "commit-reveal",
		Usage:   "Provision, deploy and drive a commit-reveal contract",
		Version: common.Version,
		Flags:   flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Commit and reveal, optionally recreating and deploying the contract first",
				Flags: []cli.Flag{flags.DeployFlag, flags.StrictFlag, flags.ContractWasmFlag, commitHashFlag, revealValueFlag},
				Action: func(cCtx *cli.Context) error {
					return execute(cCtx, func(cfg *config.Config) runner.Plan {
						return runner.Plan{
							Provision:    cfg.Deploy,
							Deploy:       cfg.Deploy,
							CommitReveal: true,
							Strict:       cCtx.Bool(flags.StrictFlag.Name),
						}
					})
				},
			},
			{
				Name:  "provision",
				Usage: "Delete and recreate the contract account under the funding account",
				Action: func(cCtx *cli.Context) error {
					return execute(cCtx, func(*config.Config) runner.Plan {
						return runner.Plan{Provision: true}
					})
				},
			},
			{
				Name:  "deploy",
				Usage: "Deploy and initialize the contract",
				Flags: []cli.Flag{flags.ContractWasmFlag},
				Action: func(cCtx *cli.Context) error {
					return execute(cCtx, func(*config.Config) runner.Plan {
						return runner.Plan{Deploy: true}
					})
				},
			},
			{
				Name:  "commit-reveal",
				Usage: "Commit a hash and reveal its value",
				Flags: []cli.Flag{flags.StrictFlag, commitHashFlag, revealValueFlag},
				Action: func(cCtx *cli.Context) error {
					return execute(cCtx, func(*config.Config) runner.Plan {
						return runner.Plan{CommitReveal: true, Strict: cCtx.Bool(flags.StrictFlag.Name)}
					})
				},
			},
			{
				Name:  "reveal",
				Usage: "Reveal a value committed by an earlier run",
				Flags: []cli.Flag{flags.StrictFlag, revealValueFlag},
				Action: func(cCtx *cli.Context) error {
					return execute(cCtx, func(*config.Config) runner.Plan {
						return runner.Plan{RevealOnly: true, Strict: cCtx.Bool(flags.StrictFlag.Name)}
					})
				},
			},
			{
				Name:  "keys",
				Usage: "Inspect the signing identity",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the public key derived from the seed phrase",
						Action: showKeys,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags.ApplyOverrides(cCtx, cfg)
	if cCtx.IsSet(commitHashFlag.Name) {
		cfg.CommitHash = cCtx.String(commitHashFlag.Name)
	}
	if cCtx.IsSet(revealValueFlag.Name) {
		cfg.RevealValue = cCtx.String(revealValueFlag.Name)
	}

	if cCtx.Bool(flags.PromptSeedPhraseFlag.Name) {
		if err := cfg.PromptSeedPhrase(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func execute(cCtx *cli.Context, plan func(*config.Config) runner.Plan) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := loadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return err
	}

	storageFactory := storage.NewStorageBackendFactory(logger, storage.Credentials{
		VaultToken:  cfg.VaultToken,
		GitHubToken: cfg.GitHubToken,
	})

	run := runner.New(cfg, storageFactory, logger)
	defer run.Close()

	if cCtx.String(flags.StatusAddrFlag.Name) != "" {
		server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), httpserver.NewHandler(run, logger))
		if err != nil {
			logger.Error("Failed to create status server", "err", err)
			return err
		}
		server.RunInBackground()
		defer server.Shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := run.Run(ctx, plan(cfg))

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("Failed to encode report", "err", err)
	} else {
		fmt.Println(string(out))
	}
	return runErr
}

func showKeys(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	storageFactory := storage.NewStorageBackendFactory(logger, storage.Credentials{VaultToken: cfg.VaultToken})
	identity, err := runner.New(cfg, storageFactory, logger).Identity(cCtx.Context)
	if err != nil {
		logger.Error("Failed to derive identity", "err", err)
		return err
	}

	network := cfg.Network()
	ks := keys.Register(identity, network.NetworkID, cfg.Contract())

	fmt.Printf("network:    %s\n", network.NetworkID)
	fmt.Printf("public key: %s\n", identity.KeyPair.PublicKey)
	for _, acc := range ks.Accounts(network.NetworkID) {
		fmt.Printf("account:    %s\n", acc)
	}
	return nil
}
