// Package cleanup implements the independent teardown path. It needs
// only SSH credentials and a project name, and removes a deployment
// best-effort: every missing resource is tolerated, and the run fails
// only when the remote execution channel itself fails.
package cleanup

import (
	"context"
	"fmt"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/artpar/shipway/internal/core/remotescript"
	"github.com/charmbracelet/log"
)

// RemoteRunner executes a script on the remote host. Satisfied by
// sshx.Client.
type RemoteRunner interface {
	RunScript(ctx context.Context, script string, onLine func(string)) (int, error)
}

// =============================================================================
// Teardown
// =============================================================================

// Teardown removes a project's deployment from the remote host.
type Teardown struct {
	logger *log.Logger
	runner RemoteRunner
}

// NewTeardown creates a teardown executor.
func NewTeardown(logger *log.Logger, runner RemoteRunner) *Teardown {
	return &Teardown{logger: logger, runner: runner}
}

// Run transmits the teardown unit in one round trip: stop and remove the
// project's stack, drop the proxy rule, reload the proxy, remove the
// remote project directory. Invoked against a project that was never
// deployed it is a no-op and succeeds.
func (t *Teardown) Run(ctx context.Context, cfg domain.TeardownConfig, onLine func(string)) error {
	if err := cfg.Validate(); err != nil {
		return domain.NewPipelineError(domain.StageTeardown, domain.ErrTeardownFailed, err, "invalid teardown parameters")
	}

	id := domain.ProjectIdentity{Name: domain.Slugify(cfg.ProjectName)}
	if id.Name == "" {
		return domain.NewPipelineError(domain.StageTeardown, domain.ErrTeardownFailed,
			fmt.Errorf("unusable project name %q", cfg.ProjectName), "derive project identity")
	}

	t.logger.Info("tearing down project", "project", id.Name, "host", cfg.Host)

	steps := remotescript.TeardownSteps(remotescript.TeardownParams{
		ProjectName: id.Name,
		RemotePath:  id.RemotePath(),
		RulePath:    id.ProxyRulePath(),
		RuleLink:    id.ProxyRuleLink(),
	})
	script := remotescript.Render(id.Name, id.RemoteLogPath(), steps)

	status, err := t.runner.RunScript(ctx, script, onLine)
	if err != nil {
		return domain.NewPipelineError(domain.StageTeardown, domain.ErrTeardownFailed, err, "remote execution channel failed")
	}
	if status != 0 {
		return domain.NewPipelineError(domain.StageTeardown, domain.ErrTeardownFailed,
			fmt.Errorf("teardown unit exited %d", status), "remote teardown failed")
	}

	t.logger.Info("teardown complete", "project", id.Name)
	return nil
}
