// Package runner wires configuration, keys, the RPC client and the
// provisioning, deployment and commit-reveal components into one run, and
// records the outcome as a report.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/commit-reveal-driver/account"
	"github.com/ruteri/commit-reveal-driver/commitreveal"
	"github.com/ruteri/commit-reveal-driver/config"
	"github.com/ruteri/commit-reveal-driver/confirm"
	"github.com/ruteri/commit-reveal-driver/deployer"
	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/keys"
	"github.com/ruteri/commit-reveal-driver/nearrpc"
	"github.com/ruteri/commit-reveal-driver/provisioner"
	"go.uber.org/atomic"
)

// ErrValidationFailed is returned by strict runs whose outcomes did not validate.
var ErrValidationFailed = errors.New("validation failed")

// reportTimeout bounds report storage, which still runs after ctx is cancelled.
const reportTimeout = 30 * time.Second

// Phase is the part of a run currently executing.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePreparing    Phase = "preparing"
	PhaseProvisioning Phase = "provisioning"
	PhaseDeploying    Phase = "deploying"
	PhaseCommitReveal Phase = "commit-reveal"
	PhaseReporting    Phase = "reporting"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// Plan selects the steps of a run.
type Plan struct {
	Provision    bool
	Deploy       bool
	CommitReveal bool
	// RevealOnly reveals a value committed by an earlier run. It is ignored
	// when CommitReveal is set.
	RevealOnly bool
	// Strict turns validation failures into a run error.
	Strict bool
}

// RunReport is the persisted record of one run.
type RunReport struct {
	RunID            string                  `json:"run_id"`
	Network          interfaces.NetworkID    `json:"network"`
	ContractID       interfaces.AccountID    `json:"contract_id"`
	FundingAccountID interfaces.AccountID    `json:"funding_account_id"`
	StartedAt        time.Time               `json:"started_at"`
	FinishedAt       time.Time               `json:"finished_at"`
	Provisioning     *provisioner.Report     `json:"provisioning,omitempty"`
	Deploy           *deployer.DeployOutcome `json:"deploy,omitempty"`
	Init             *deployer.InitOutcome   `json:"init,omitempty"`
	DeployError      string                  `json:"deploy_error,omitempty"`
	CommitReveal     *commitreveal.Result    `json:"commit_reveal,omitempty"`
	Error            string                  `json:"error,omitempty"`
	OK               bool                    `json:"ok"`

	// Location is where the report was stored, if anywhere.
	Location string `json:"-"`
}

// Status is a point-in-time view of the runner for the status server.
type Status struct {
	Phase       Phase      `json:"phase"`
	RunID       string     `json:"run_id,omitempty"`
	DriverState string     `json:"driver_state,omitempty"`
	LastReport  *RunReport `json:"last_report,omitempty"`
}

// Runner executes plans against one network with one identity.
type Runner struct {
	cfg     *config.Config
	storage interfaces.StorageBackendFactory
	log     *slog.Logger

	phase  *atomic.String
	runID  *atomic.String
	ready  *atomic.Bool
	driver atomic.Pointer[commitreveal.Driver]
	last   atomic.Pointer[RunReport]

	network   interfaces.NetworkConfig
	identity  *interfaces.Identity
	client    *nearrpc.Client
	accounts  *account.Manager
	confirmer interfaces.Confirmer
}

func New(cfg *config.Config, storage interfaces.StorageBackendFactory, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		storage: storage,
		log:     log,
		phase:   atomic.NewString(string(PhaseIdle)),
		runID:   atomic.NewString(""),
		ready:   atomic.NewBool(false),
	}
}

// Prepare validates the configuration, derives the identity, registers it
// for the funding and contract accounts and dials the RPC endpoint. All
// precondition errors are returned before any RPC traffic.
func (r *Runner) Prepare(ctx context.Context) error {
	if r.client != nil {
		return nil
	}
	r.setPhase(PhasePreparing)

	if err := r.cfg.Validate(); err != nil {
		return err
	}

	identity, err := r.Identity(ctx)
	if err != nil {
		return err
	}

	r.network = r.cfg.Network()
	ks := keys.Register(identity, r.network.NetworkID, r.cfg.Contract())
	r.log.Info("Identity registered",
		"network", r.network.NetworkID,
		"accounts", ks.Accounts(r.network.NetworkID),
		"publicKey", identity.KeyPair.PublicKey)

	client, err := nearrpc.Dial(ctx, r.network.RPCEndpoint, r.log)
	if err != nil {
		return err
	}

	r.identity = identity
	r.client = client
	r.accounts = account.NewManager(client, ks, r.network, r.log)
	r.confirmer = r.newConfirmer()
	r.ready.Store(true)
	return nil
}

// Identity derives the run's identity from the configured seed phrase,
// fetching it from SeedPhraseURI when it is not set directly.
func (r *Runner) Identity(ctx context.Context) (*interfaces.Identity, error) {
	if r.identity != nil {
		return r.identity, nil
	}

	phrase := r.cfg.SeedPhrase
	if phrase == "" && r.cfg.SeedPhraseURI != "" {
		if r.storage == nil {
			return nil, fmt.Errorf("%w: no storage configured for %s", interfaces.ErrMissingConfig, r.cfg.SeedPhraseURI)
		}
		raw, err := r.storage.FetchURI(ctx, r.cfg.SeedPhraseURI)
		if err != nil {
			return nil, fmt.Errorf("could not fetch seed phrase: %w", err)
		}
		phrase = strings.ReplaceAll(string(raw), `"`, "")
	}

	return keys.Derive(r.cfg.FundingAccount(), phrase)
}

func (r *Runner) newConfirmer() interfaces.Confirmer {
	if r.cfg.Confirm == config.ConfirmPoll {
		return confirm.NewPoller(r.client, r.log)
	}
	return confirm.FixedDelay{Delay: r.cfg.SettleDelay}
}

// Close releases the RPC connection.
func (r *Runner) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// Ready reports whether the identity is registered and the client dialed.
func (r *Runner) Ready() bool {
	return r.ready.Load()
}

// Status returns the current phase, driver state and the last report.
func (r *Runner) Status() Status {
	st := Status{
		Phase:      Phase(r.phase.Load()),
		RunID:      r.runID.Load(),
		LastReport: r.last.Load(),
	}
	if d := r.driver.Load(); d != nil {
		st.DriverState = d.State().String()
	}
	return st
}

func (r *Runner) setPhase(p Phase) {
	r.phase.Store(string(p))
	r.log.Debug("Run phase", "phase", p)
}

// Run executes plan and stores the report. The returned report is never nil.
// Provisioning and deployment problems are recorded without ending the run;
// commit and reveal failures, cancellation and, with Strict, validation
// failures are returned as errors.
func (r *Runner) Run(ctx context.Context, plan Plan) (*RunReport, error) {
	report := &RunReport{
		RunID:            uuid.NewString(),
		ContractID:       r.cfg.Contract(),
		FundingAccountID: r.cfg.FundingAccount(),
		StartedAt:        time.Now().UTC(),
	}
	r.runID.Store(report.RunID)
	log := r.log.With("runID", report.RunID)

	err := r.execute(ctx, log, plan, report)

	report.FinishedAt = time.Now().UTC()
	report.OK = err == nil
	if err != nil {
		report.Error = err.Error()
	}

	r.setPhase(PhaseReporting)
	r.store(ctx, log, report)
	r.last.Store(report)

	if err != nil {
		r.setPhase(PhaseFailed)
		log.Error("Run failed", "err", err)
		return report, err
	}
	r.setPhase(PhaseDone)
	log.Info("Run finished", "duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (r *Runner) execute(ctx context.Context, log *slog.Logger, plan Plan, report *RunReport) error {
	if err := r.Prepare(ctx); err != nil {
		return err
	}
	report.Network = r.network.NetworkID

	if plan.Provision || plan.Deploy {
		if err := r.cfg.ValidateDeploy(); err != nil {
			return err
		}
	}

	if plan.Provision {
		r.setPhase(PhaseProvisioning)
		amount, err := r.cfg.Funding()
		if err != nil {
			return fmt.Errorf("%w: FUNDING_AMOUNT: %v", interfaces.ErrMissingConfig, err)
		}
		p := provisioner.New(r.accounts, r.confirmer, log)
		report.Provisioning = p.Reprovision(ctx, r.cfg.FundingAccount(), r.cfg.Contract(), r.identity.KeyPair.PublicKey, amount)
		if !report.Provisioning.OK() {
			log.Warn("Provisioning incomplete, continuing")
		}
	}

	if plan.Deploy {
		r.setPhase(PhaseDeploying)
		if err := r.deploy(ctx, log, report); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			report.DeployError = err.Error()
			log.Error("Deployment failed, continuing", "err", err)
		}
	}

	switch {
	case plan.CommitReveal:
		return r.commitReveal(ctx, log, plan, report)
	case plan.RevealOnly:
		return r.revealOnly(ctx, log, plan, report)
	}
	return ctx.Err()
}

func (r *Runner) deploy(ctx context.Context, log *slog.Logger, report *RunReport) error {
	code, err := r.loadContract(ctx)
	if err != nil {
		return err
	}

	d := deployer.New(r.accounts, r.accounts, r.confirmer, log)
	deployed, err := d.Deploy(ctx, r.cfg.Contract(), code)
	report.Deploy = deployed
	if err != nil {
		return err
	}

	initialized, err := d.Initialize(ctx, r.cfg.Contract(), r.cfg.FundingAccount(), r.cfg.Gas)
	report.Init = initialized
	return err
}

func (r *Runner) loadContract(ctx context.Context) ([]byte, error) {
	if r.storage == nil {
		return nil, fmt.Errorf("%w: no storage configured for %s", interfaces.ErrMissingConfig, r.cfg.ContractWasm)
	}
	code, err := r.storage.FetchURI(ctx, r.cfg.ContractWasm)
	if err != nil {
		return nil, fmt.Errorf("could not load contract %s: %w", r.cfg.ContractWasm, err)
	}
	r.log.Info("Loaded contract", "source", r.cfg.ContractWasm, "bytes", len(code))
	return code, nil
}

func (r *Runner) newDriver(log *slog.Logger) *commitreveal.Driver {
	d := commitreveal.New(r.accounts, r.confirmer, r.cfg.Contract(), r.cfg.Gas, log)
	r.driver.Store(d)
	return d
}

func (r *Runner) commitReveal(ctx context.Context, log *slog.Logger, plan Plan, report *RunReport) error {
	r.setPhase(PhaseCommitReveal)
	d := r.newDriver(log)

	res, err := d.Run(ctx, r.cfg.CommitHash, r.cfg.RevealValue)
	report.CommitReveal = res
	if err != nil {
		return err
	}
	if plan.Strict && !res.OK() {
		return ErrValidationFailed
	}
	return nil
}

func (r *Runner) revealOnly(ctx context.Context, log *slog.Logger, plan Plan, report *RunReport) error {
	r.setPhase(PhaseCommitReveal)
	d := r.newDriver(log)
	if err := d.ResumeCommitted(); err != nil {
		return err
	}

	res := &commitreveal.Result{}
	report.CommitReveal = res

	outcome, v, err := d.RevealAndValidate(ctx, r.cfg.RevealValue)
	res.Reveal = outcome
	res.RevealValidation = v
	if err != nil {
		return err
	}
	if plan.Strict && !v.OK {
		return ErrValidationFailed
	}
	return nil
}

func (r *Runner) store(ctx context.Context, log *slog.Logger, report *RunReport) {
	if len(r.cfg.ReportStores) == 0 || r.storage == nil {
		return
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(r.cfg.ReportStores))
	for _, uri := range r.cfg.ReportStores {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			log.Warn("Skipping report store", "uri", uri, "err", err)
			continue
		}
		locations = append(locations, loc)
	}

	backend, err := r.storage.CreateMultiBackend(locations)
	if err != nil {
		log.Error("No usable report store", "err", err)
		return
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Error("Could not encode report", "err", err)
		return
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	location, err := backend.Store(storeCtx, "reports/"+report.RunID+".json", data)
	if err != nil {
		log.Error("Could not store report", "err", err)
		return
	}
	report.Location = location
	log.Info("Report stored", "location", location)
}
