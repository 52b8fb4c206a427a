package cleanup

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	status int
	err    error
	script string
}

func (f *fakeRunner) RunScript(_ context.Context, script string, _ func(string)) (int, error) {
	f.script = script
	return f.status, f.err
}

func teardownConfig() domain.TeardownConfig {
	return domain.TeardownConfig{
		SSHUser:     "deploy",
		Host:        "203.0.113.10",
		KeyPath:     "/home/op/.ssh/id_ed25519",
		ProjectName: "My App",
	}
}

// =============================================================================
// Teardown Tests
// =============================================================================

func TestRun_Success(t *testing.T) {
	runner := &fakeRunner{}
	td := NewTeardown(log.New(io.Discard), runner)

	require.NoError(t, td.Run(context.Background(), teardownConfig(), nil))

	// The project name goes through the same slug derivation as deploys,
	// so teardown targets the same remote path.
	assert.Contains(t, runner.script, "/srv/shipway/my-app")
	assert.Contains(t, runner.script, "/etc/nginx/sites-available/my-app.conf")
}

func TestRun_AbsentDeploymentSucceeds(t *testing.T) {
	// The unit tolerates missing resources remotely and exits 0, which is
	// all the controller sees.
	runner := &fakeRunner{status: 0}
	td := NewTeardown(log.New(io.Discard), runner)
	assert.NoError(t, td.Run(context.Background(), teardownConfig(), nil))
}

func TestRun_ChannelFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("dial tcp: connection refused")}
	td := NewTeardown(log.New(io.Discard), runner)

	err := td.Run(context.Background(), teardownConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.ExitTeardownFailed, domain.ExitCodeFor(err))
}

func TestRun_PrivilegeDenied(t *testing.T) {
	runner := &fakeRunner{status: 1}
	td := NewTeardown(log.New(io.Discard), runner)

	err := td.Run(context.Background(), teardownConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.ExitTeardownFailed, domain.ExitCodeFor(err))
}

func TestRun_InvalidParameters(t *testing.T) {
	td := NewTeardown(log.New(io.Discard), &fakeRunner{})

	cfg := teardownConfig()
	cfg.ProjectName = ""
	err := td.Run(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ExitTeardownFailed, domain.ExitCodeFor(err))
}
