// Package transfer implements the incremental file transfer agent. It
// shells out to rsync over SSH: unchanged files are not retransmitted,
// version-control metadata is excluded, and deletions are confined to the
// project's own remote path.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/charmbracelet/log"
)

// RemoteRunner executes a script on the remote host. Satisfied by
// sshx.Client.
type RemoteRunner interface {
	RunScript(ctx context.Context, script string, onLine func(string)) (int, error)
}

// =============================================================================
// Agent
// =============================================================================

// Agent pushes the local workspace to the remote project path.
type Agent struct {
	logger *log.Logger
	runner RemoteRunner

	// execRsync is swappable for tests.
	execRsync func(ctx context.Context, args ...string) error
}

// NewAgent creates a transfer agent.
func NewAgent(logger *log.Logger, runner RemoteRunner) *Agent {
	a := &Agent{logger: logger, runner: runner}
	a.execRsync = a.runRsyncCmd
	return a
}

// RsyncArgs builds the rsync invocation for one push. Split out so the
// exact flags are testable: delta transfer (-az), deletion scoped to the
// destination project directory only, and .git excluded.
func RsyncArgs(cfg domain.DeploymentConfig, workspace, remotePath string) []string {
	sshCmd := fmt.Sprintf("ssh -i %s -o BatchMode=yes -o StrictHostKeyChecking=no", cfg.KeyPath)
	return []string{
		"-az",
		"--delete",
		"--exclude=.git",
		"-e", sshCmd,
		"--rsync-path", "sudo -n rsync",
		strings.TrimRight(workspace, "/") + "/",
		fmt.Sprintf("%s@%s:%s/", cfg.SSHUser, cfg.Host, strings.TrimRight(remotePath, "/")),
	}
}

// Push syncs the workspace to the remote project path. The remote
// directory is created first over the command channel, together with the
// remote rsync binary when absent (transfer runs before the provisioning
// unit, so on a fresh host nothing has installed it yet); rsync then
// applies only the delta. Any non-zero transport outcome is a transfer
// failure.
func (a *Agent) Push(ctx context.Context, cfg domain.DeploymentConfig, workspace, remotePath string) error {
	a.logger.Info("preparing remote path", "path", remotePath)

	prepare := fmt.Sprintf(
		"sudo -n mkdir -p %[1]s && sudo -n chown %[2]s %[1]s && { command -v rsync >/dev/null 2>&1 || sudo -n apt-get install -y -qq rsync; }",
		remotePath, cfg.SSHUser)
	status, err := a.runner.RunScript(ctx, prepare, nil)
	if err != nil {
		return domain.NewPipelineError(domain.StageTransfer, domain.ErrTransferFailed, err, "prepare remote path")
	}
	if status != 0 {
		return domain.NewPipelineError(domain.StageTransfer, domain.ErrTransferFailed,
			fmt.Errorf("remote path preparation exited %d (is passwordless sudo available?)", status), "prepare remote path")
	}

	a.logger.Info("syncing workspace", "workspace", workspace, "path", remotePath)
	if err := a.execRsync(ctx, RsyncArgs(cfg, workspace, remotePath)...); err != nil {
		return domain.NewPipelineError(domain.StageTransfer, domain.ErrTransferFailed, err, "rsync workspace")
	}
	return nil
}

func (a *Agent) runRsyncCmd(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "rsync", args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(output.String())
		if msg == "" {
			return fmt.Errorf("rsync: %w", err)
		}
		return fmt.Errorf("rsync: %s", msg)
	}
	return nil
}
