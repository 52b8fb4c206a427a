package remotescript

import (
	"fmt"
	"strings"
	"testing"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/artpar/shipway/internal/core/nginx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deployParams(useCompose bool) DeployParams {
	id := domain.ProjectIdentity{Name: "my-app"}
	return DeployParams{
		ProjectName:  id.Name,
		RemotePath:   id.RemotePath(),
		RemoteLog:    id.RemoteLogPath(),
		RulePath:     id.ProxyRulePath(),
		RuleLink:     id.ProxyRuleLink(),
		Rule:         nginx.GenerateRule(nginx.RuleParams{ProjectName: id.Name, ServerName: "203.0.113.10", Port: 8080}),
		InternalPort: 8080,
		UseCompose:   useCompose,
	}
}

// =============================================================================
// Deploy Step Tests
// =============================================================================

func TestDeploySteps_Order(t *testing.T) {
	steps := DeploySteps(deployParams(true))

	var names []string
	for _, s := range steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"privilege-check",
		"package-index",
		"base-packages",
		"docker-engine",
		"compose-plugin",
		"docker-group",
		"nginx-engine",
		"services",
		"deploy-stack",
		"proxy-rule",
		"remote-validate",
	}, names)
}

func TestDeploySteps_PrivilegeCheckedBeforeAnyInstall(t *testing.T) {
	script := Render("my-app", "/var/log/shipway/my-app.log", DeploySteps(deployParams(true)))

	sudoCheck := strings.Index(script, "sudo -n true")
	firstInstall := strings.Index(script, "apt-get")
	require.Positive(t, sudoCheck)
	require.Positive(t, firstInstall)
	assert.Less(t, sudoCheck, firstInstall)
}

func TestDeploySteps_InstallsAreGuarded(t *testing.T) {
	script := Render("my-app", "/var/log/shipway/my-app.log", DeploySteps(deployParams(true)))

	// Docker's apt key registration is not idempotent to repeat, so the
	// whole install block must be behind a presence check.
	assert.Contains(t, script, "if command -v docker >/dev/null 2>&1; then")
	assert.Contains(t, script, "if command -v nginx >/dev/null 2>&1; then")
	assert.Contains(t, script, `if id -nG "$USER" | tr ' ' '\n' | grep -qx docker; then`)
	assert.Contains(t, script, "sudo docker compose version >/dev/null 2>&1")
}

func TestDeploySteps_ComposeStackReplacement(t *testing.T) {
	steps := DeploySteps(deployParams(true))
	deploy := stepByName(t, steps, "deploy-stack")

	// Removal tolerates "nothing to remove"; start blocks until ready.
	assert.Contains(t, deploy.Script, "docker compose down --remove-orphans >/dev/null 2>&1 || true")
	assert.Contains(t, deploy.Script, "docker compose up -d --build --wait")
}

func TestDeploySteps_SingleContainerVariant(t *testing.T) {
	steps := DeploySteps(deployParams(false))
	deploy := stepByName(t, steps, "deploy-stack")

	assert.Contains(t, deploy.Script, "sudo docker stop my-app >/dev/null 2>&1 || true")
	assert.Contains(t, deploy.Script, "sudo docker build -t my-app .")
	assert.Contains(t, deploy.Script, "-p 127.0.0.1:8080:8080")
	assert.NotContains(t, deploy.Script, "docker compose")
}

func TestDeploySteps_ProxyValidatesBeforeReload(t *testing.T) {
	steps := DeploySteps(deployParams(true))
	proxy := stepByName(t, steps, "proxy-rule")

	validate := strings.Index(proxy.Script, "nginx -t")
	reload := strings.Index(proxy.Script, "systemctl reload nginx")
	require.Positive(t, validate)
	require.Positive(t, reload)
	assert.Less(t, validate, reload)

	// Activation is a live reload, never a restart.
	assert.NotContains(t, proxy.Script, "systemctl restart")
	assert.Contains(t, proxy.Script, fmt.Sprintf("fail %d", domain.ExitProxyConfigInvalid))
}

func TestDeploySteps_RejectedRuleRollsBackEnabledState(t *testing.T) {
	p := deployParams(true)
	proxy := stepByName(t, DeploySteps(p), "proxy-rule")

	// The symlink is enabled before nginx -t runs, so a rejected rule must
	// not survive on disk: a later reload or restart triggered outside a
	// deploy (reboot, another project's deploy) would otherwise fail for
	// every project on the host.
	backup := strings.Index(proxy.Script, "cp -p "+p.RulePath+" "+p.RulePath+".prev")
	write := strings.Index(proxy.Script, "sudo tee "+p.RulePath)
	enable := strings.Index(proxy.Script, "ln -sf")
	validate := strings.Index(proxy.Script, "nginx -t")
	require.Positive(t, backup)
	require.Positive(t, write)
	require.Positive(t, enable)
	require.Positive(t, validate)
	assert.Less(t, backup, write, "existing rule must be backed up before it is overwritten")
	assert.Less(t, enable, validate)

	// The failure branch restores the backup when one exists and removes
	// the broken rule and symlink on a first deploy, before exiting 31.
	failure := proxy.Script[validate:]
	restore := strings.Index(failure, "sudo mv "+p.RulePath+".prev "+p.RulePath)
	remove := strings.Index(failure, "sudo rm -f "+p.RuleLink+" "+p.RulePath)
	failExit := strings.Index(failure, fmt.Sprintf("fail %d", domain.ExitProxyConfigInvalid))
	require.Positive(t, restore)
	require.Positive(t, remove)
	require.Positive(t, failExit)
	assert.Less(t, restore, failExit, "restore must happen before the unit exits")
	assert.Less(t, remove, failExit)

	// The backup is dropped only after validation succeeds.
	assert.Contains(t, proxy.Script[validate:], "sudo rm -f "+p.RulePath+".prev")
}

func TestDeploySteps_ProxyRuleEmbedsUpstreamPort(t *testing.T) {
	proxy := stepByName(t, DeploySteps(deployParams(true)), "proxy-rule")
	assert.Contains(t, proxy.Script, "proxy_pass http://localhost:8080;")
}

func TestDeploySteps_ValidateElevatesHealthFailure(t *testing.T) {
	validate := stepByName(t, DeploySteps(deployParams(true)), "remote-validate")
	assert.Contains(t, validate.Script, fmt.Sprintf("fail %d", domain.ExitNoRunningContainers))
	assert.Contains(t, validate.Script, "com.docker.compose.project=my-app")
}

func TestDeploySteps_SingleContainerValidateFiltersByName(t *testing.T) {
	validate := stepByName(t, DeploySteps(deployParams(false)), "remote-validate")
	assert.Contains(t, validate.Script, "name=^my-app$")
}

// =============================================================================
// Teardown Step Tests
// =============================================================================

func TestTeardownSteps_BestEffort(t *testing.T) {
	id := domain.ProjectIdentity{Name: "my-app"}
	steps := TeardownSteps(TeardownParams{
		ProjectName: id.Name,
		RemotePath:  id.RemotePath(),
		RulePath:    id.ProxyRulePath(),
		RuleLink:    id.ProxyRuleLink(),
	})

	script := Render(id.Name, id.RemoteLogPath(), steps)

	// Every removal tolerates absence; only the privilege check can fail
	// the unit.
	for _, s := range steps[1:] {
		assert.True(t, strings.Contains(s.Script, "|| true") || strings.Contains(s.Script, "nginx -t"),
			"step %s must be best-effort", s.Name)
		assert.NotContains(t, s.Script, "fail ")
	}
	assert.Contains(t, script, "rm -rf /srv/shipway/my-app")
	assert.Contains(t, script, "rm -f /etc/nginx/sites-enabled/my-app.conf /etc/nginx/sites-available/my-app.conf")
}

func TestTeardownSteps_Order(t *testing.T) {
	steps := TeardownSteps(TeardownParams{ProjectName: "x", RemotePath: "/srv/shipway/x"})

	var names []string
	for _, s := range steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"privilege-check",
		"remove-stack",
		"remove-proxy-rule",
		"reload-proxy",
		"remove-project-dir",
	}, names)
}

// =============================================================================
// Render Tests
// =============================================================================

func TestRender_Prelude(t *testing.T) {
	script := Render("my-app", "/var/log/shipway/my-app.log", []Step{{Name: "noop", Script: "true"}})

	assert.True(t, strings.HasPrefix(script, "#!/bin/sh\n"))
	assert.Contains(t, script, "set -u")
	assert.Contains(t, script, `SHIPWAY_LOG="/var/log/shipway/my-app.log"`)
	assert.Contains(t, script, "log \"step: noop\"")
	assert.Contains(t, script, "exit 0")
}

func TestRender_Deterministic(t *testing.T) {
	// Rendering twice with unchanged input must produce identical scripts;
	// this is what makes the transmitted unit re-runnable.
	p := deployParams(true)
	a := Render("my-app", p.RemoteLog, DeploySteps(p))
	b := Render("my-app", p.RemoteLog, DeploySteps(p))
	assert.Equal(t, a, b)
}

func TestIsRemoteLogLine(t *testing.T) {
	assert.True(t, IsRemoteLogLine("[shipway-remote] 2026-01-01T00:00:00 my-app: step: services"))
	assert.True(t, IsRemoteLogLine("  [shipway-remote] x"))
	assert.False(t, IsRemoteLogLine("Reading package lists..."))
}

func stepByName(t *testing.T, steps []Step, name string) Step {
	t.Helper()
	for _, s := range steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %s not found", name)
	return Step{}
}
