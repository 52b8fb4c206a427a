// Package pipeline implements the deployment pipeline driver: a fixed
// sequence of stages spanning the local controller and the remote host.
// The driver aborts on the first stage failure, maps every failure to its
// stage-specific outcome, and produces exactly one terminal result per
// run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/artpar/shipway/internal/core/nginx"
	"github.com/artpar/shipway/internal/core/remotescript"
	"github.com/artpar/shipway/internal/shell/verify"
	"github.com/charmbracelet/log"
)

// =============================================================================
// Component Interfaces
// =============================================================================

// Synchronizer brings the local workspace up to date with the configured
// branch. Satisfied by git.Synchronizer.
type Synchronizer interface {
	Sync(ctx context.Context, cfg domain.DeploymentConfig, workspace string) error
}

// Verifier checks the workspace for a deployable build descriptor.
type Verifier interface {
	Workspace(dir string) (verify.Result, error)
}

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(dir string) (verify.Result, error)

func (f VerifierFunc) Workspace(dir string) (verify.Result, error) { return f(dir) }

// Prober performs the bounded-timeout remote reachability check.
// Satisfied by sshx.Client.
type Prober interface {
	Probe(ctx context.Context) error
}

// Transferrer pushes the workspace to the remote project path.
// Satisfied by transfer.Agent.
type Transferrer interface {
	Push(ctx context.Context, cfg domain.DeploymentConfig, workspace, remotePath string) error
}

// RemoteRunner executes the remote unit over one round trip. Satisfied by
// sshx.Client.
type RemoteRunner interface {
	RunScript(ctx context.Context, script string, onLine func(string)) (int, error)
}

// ExternalValidator probes the deployed application from the outside.
// Satisfied by validate.External.
type ExternalValidator interface {
	Check(ctx context.Context, host string) error
}

// Deps bundles the stage components the driver sequences.
type Deps struct {
	Sync     Synchronizer
	Verify   Verifier
	Prober   Prober
	Transfer Transferrer
	Runner   RemoteRunner
	External ExternalValidator
}

// =============================================================================
// Driver
// =============================================================================

// Driver owns the deployment configuration for the run's lifetime and
// executes the pipeline stages in their fixed order.
type Driver struct {
	cfg      domain.DeploymentConfig
	workRoot string
	logger   *log.Logger
	echo     func(string)
	deps     Deps
}

// New creates a pipeline driver. echo receives remote-originated output
// lines; it may be nil.
func New(cfg domain.DeploymentConfig, workRoot string, logger *log.Logger, echo func(string), deps Deps) *Driver {
	return &Driver{cfg: cfg, workRoot: workRoot, logger: logger, echo: echo, deps: deps}
}

// Run executes the pipeline and returns its terminal result. Exactly one
// result is produced regardless of the path taken; the caller owns
// finalization (logging the terminal line, recording history, emitting
// the exit code).
func (d *Driver) Run(ctx context.Context, runID string) domain.RunResult {
	result := domain.RunResult{RunID: runID, StartedAt: time.Now()}

	err := func() (err error) {
		// A panic anywhere in a stage still yields exactly one terminal
		// result, mapped to the unexpected-fault outcome.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("unexpected fault: %v", r)
			}
		}()
		return d.run(ctx, &result)
	}()
	result.FinishedAt = time.Now()
	result.ExitCode = domain.ExitCodeFor(err)

	if err != nil {
		result.Message = err.Error()
		if result.ExitCode != domain.ExitInterrupted {
			var perr *domain.PipelineError
			if errors.As(err, &perr) {
				result.Stage = perr.Stage
			}
		}
		return result
	}

	result.Message = fmt.Sprintf("deployed %s to %s", result.Project, d.cfg.Host)
	return result
}

func (d *Driver) run(ctx context.Context, result *domain.RunResult) error {
	// Stage: parameter validation. Identity derivation is part of it:
	// everything downstream is keyed by the identity, so a config that
	// cannot produce one is a parameter failure.
	if err := d.cfg.Validate(); err != nil {
		return domain.NewPipelineError(domain.StageParamValidation, domain.ErrMissingParameter, err, "")
	}
	identity, err := domain.DeriveIdentity(d.cfg.RepoURL)
	if err != nil {
		return domain.NewPipelineError(domain.StageParamValidation, domain.ErrMissingParameter, err, "derive project identity")
	}
	result.Project = identity.Name
	workspace := identity.WorkspaceDir(d.workRoot)
	d.logger.Info("starting deployment", "project", identity.Name, "host", d.cfg.Host, "branch", d.branch())

	// Stage: local sync.
	if err := d.checkpoint(ctx, domain.StageLocalSync); err != nil {
		return err
	}
	if err := d.deps.Sync.Sync(ctx, d.cfg, workspace); err != nil {
		return d.interruptedOr(ctx, err)
	}

	// Stage: file verification.
	if err := d.checkpoint(ctx, domain.StageFileVerification); err != nil {
		return err
	}
	verified, err := d.deps.Verify.Workspace(workspace)
	if err != nil {
		return d.interruptedOr(ctx, err)
	}
	d.warnOverrides(verified)
	if verified.UseCompose {
		d.logger.Info("build descriptor verified", "descriptor", verified.ComposeFile, "services", verified.Services)
	} else {
		d.logger.Info("build descriptor verified", "descriptor", "Dockerfile")
	}

	// Stage: connectivity check.
	if err := d.checkpoint(ctx, domain.StageConnectivity); err != nil {
		return err
	}
	if err := d.deps.Prober.Probe(ctx); err != nil {
		return d.interruptedOr(ctx,
			domain.NewPipelineError(domain.StageConnectivity, domain.ErrConnectivityFailed, err, "remote host unreachable or credentials rejected"))
	}

	// Stage: transfer.
	if err := d.checkpoint(ctx, domain.StageTransfer); err != nil {
		return err
	}
	if err := d.deps.Transfer.Push(ctx, d.cfg, workspace, identity.RemotePath()); err != nil {
		return d.interruptedOr(ctx, err)
	}

	// Stage: remote execution unit.
	if err := d.checkpoint(ctx, domain.StageRemoteExecution); err != nil {
		return err
	}
	if err := d.runRemoteUnit(ctx, identity, verified); err != nil {
		return d.interruptedOr(ctx, err)
	}

	// Stage: external validation.
	if err := d.checkpoint(ctx, domain.StageExternalValidate); err != nil {
		return err
	}
	if err := d.deps.External.Check(ctx, d.cfg.Host); err != nil {
		return d.interruptedOr(ctx, err)
	}

	return nil
}

// runRemoteUnit composes and transmits the provision/deploy/proxy/validate
// sequence as one round trip, then maps the unit's exit status back onto
// the outcome taxonomy. Only the proxy-validation and no-running-container
// cases carry their own codes; every other internal failure collapses to
// the coarse remote-unit outcome, which is a compatibility surface.
func (d *Driver) runRemoteUnit(ctx context.Context, identity domain.ProjectIdentity, verified verify.Result) error {
	rule := nginx.GenerateRule(nginx.RuleParams{
		ProjectName: identity.Name,
		ServerName:  d.cfg.Host,
		Port:        d.cfg.InternalPort,
	})

	steps := remotescript.DeploySteps(remotescript.DeployParams{
		ProjectName:  identity.Name,
		RemotePath:   identity.RemotePath(),
		RemoteLog:    identity.RemoteLogPath(),
		RulePath:     identity.ProxyRulePath(),
		RuleLink:     identity.ProxyRuleLink(),
		Rule:         rule,
		InternalPort: d.cfg.InternalPort,
		UseCompose:   verified.UseCompose,
	})
	script := remotescript.Render(identity.Name, identity.RemoteLogPath(), steps)

	d.logger.Info("executing remote unit", "project", identity.Name, "steps", len(steps))
	status, err := d.deps.Runner.RunScript(ctx, script, d.echo)
	if err != nil {
		return domain.NewPipelineError(domain.StageRemoteExecution, domain.ErrRemoteUnitFailed, err, "remote execution channel failed")
	}

	switch status {
	case 0:
		return nil
	case domain.ExitProxyConfigInvalid:
		return domain.NewPipelineError(domain.StageRemoteExecution, domain.ErrProxyConfigInvalid, nil,
			"generated proxy rule rejected; previous configuration left active")
	case domain.ExitNoRunningContainers:
		return domain.NewPipelineError(domain.StageRemoteExecution, domain.ErrNoRunningContainer, nil,
			"stack started but no container is running")
	default:
		return domain.NewPipelineError(domain.StageRemoteExecution, domain.ErrRemoteUnitFailed,
			fmt.Errorf("remote unit exited %d", status), "")
	}
}

// checkpoint is the safe point between stages: an external interrupt
// observed here aborts the run with its own terminal outcome, distinct
// from any stage failure.
func (d *Driver) checkpoint(ctx context.Context, next domain.Stage) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w before %s", domain.ErrInterrupted, next)
	}
	d.logger.Info("stage starting", "stage", string(next))
	return nil
}

// interruptedOr keeps an interrupt that surfaced through a stage
// component distinct from that stage's own failure code.
func (d *Driver) interruptedOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrInterrupted, err)
	}
	return err
}

func (d *Driver) warnOverrides(v verify.Result) {
	if !v.HasOverrides {
		return
	}
	if v.Overrides.Port != 0 && v.Overrides.Port != d.cfg.InternalPort {
		d.logger.Warn("repository declares a different internal port",
			"configured", d.cfg.InternalPort, "declared", v.Overrides.Port)
	}
	if v.Overrides.Branch != "" && v.Overrides.Branch != d.branch() {
		d.logger.Warn("repository declares a different default branch",
			"configured", d.branch(), "declared", v.Overrides.Branch)
	}
}

func (d *Driver) branch() string {
	if d.cfg.Branch == "" {
		return domain.DefaultBranch
	}
	return d.cfg.Branch
}
