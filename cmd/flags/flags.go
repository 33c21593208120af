package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/commit-reveal-driver/common"
	"github.com/ruteri/commit-reveal-driver/config"
	"github.com/ruteri/commit-reveal-driver/httpserver"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(StatusAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 5 * time.Second,
		ReadTimeout:              10 * time.Second,
		WriteTimeout:             10 * time.Second,
	}
}

// ApplyOverrides replaces environment settings with flags given on the command line.
func ApplyOverrides(cCtx *cli.Context, cfg *config.Config) {
	if cCtx.IsSet(RPCURLFlag.Name) {
		cfg.RPCURL = cCtx.String(RPCURLFlag.Name)
	}
	if cCtx.IsSet(ContractWasmFlag.Name) {
		cfg.ContractWasm = cCtx.String(ContractWasmFlag.Name)
	}
	if cCtx.IsSet(SeedPhraseURIFlag.Name) {
		cfg.SeedPhraseURI = cCtx.String(SeedPhraseURIFlag.Name)
	}
	if cCtx.IsSet(ReportStoreFlag.Name) {
		cfg.ReportStores = cCtx.StringSlice(ReportStoreFlag.Name)
	}
	if cCtx.IsSet(ConfirmFlag.Name) {
		cfg.Confirm = cCtx.String(ConfirmFlag.Name)
	}
	if cCtx.IsSet(SettleDelayFlag.Name) {
		cfg.SettleDelay = cCtx.Duration(SettleDelayFlag.Name)
	}
	if cCtx.IsSet(DeployFlag.Name) {
		cfg.Deploy = cCtx.Bool(DeployFlag.Name)
	}
}

var RPCURLFlag = &cli.StringFlag{
	Name:  "rpc-url",
	Usage: "RPC endpoint, overrides the network default and NEAR_RPC_URL",
}

var ContractWasmFlag = &cli.StringFlag{
	Name:  "contract-wasm",
	Usage: "contract binary location: a path or file://, s3://, ipfs://, github:// URI",
}

var SeedPhraseURIFlag = &cli.StringFlag{
	Name:  "seed-phrase-uri",
	Usage: "read the seed phrase from a storage URI such as vault://host:8200/secret/near/seed-phrase",
}

var PromptSeedPhraseFlag = &cli.BoolFlag{
	Name:  "prompt-seed-phrase",
	Value: false,
	Usage: "read the seed phrase from the terminal instead of NEAR_SEED_PHRASE",
}

var ReportStoreFlag = &cli.StringSliceFlag{
	Name:  "report-store",
	Usage: "storage URI to write run reports to, may be repeated",
}

var ConfirmFlag = &cli.StringFlag{
	Name:  "confirm",
	Value: config.ConfirmDelay,
	Usage: "confirmation strategy between steps: 'delay' or 'poll'",
}

var SettleDelayFlag = &cli.DurationFlag{
	Name:  "settle-delay",
	Value: time.Second,
	Usage: "wait after each transaction when --confirm=delay",
}

var DeployFlag = &cli.BoolFlag{
	Name:  "deploy",
	Value: false,
	Usage: "recreate the contract account and deploy the contract before commit-reveal",
}

var StrictFlag = &cli.BoolFlag{
	Name:  "strict",
	Value: false,
	Usage: "fail the run when an outcome does not validate",
}

var StatusAddrFlag = &cli.StringFlag{
	Name:  "status-addr",
	Usage: "address to serve run status on, disabled when empty",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint on the status server",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 0,
	Usage: "seconds to keep serving status after the run finishes",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	RPCURLFlag,
	SeedPhraseURIFlag,
	PromptSeedPhraseFlag,
	ReportStoreFlag,
	ConfirmFlag,
	SettleDelayFlag,
	StatusAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
}
