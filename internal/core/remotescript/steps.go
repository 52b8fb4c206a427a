package remotescript

import (
	"fmt"
	"strings"

	"github.com/artpar/shipway/internal/core/domain"
)

// =============================================================================
// Step Types
// =============================================================================

// Step is one named, idempotent unit of the remote execution sequence.
type Step struct {
	Name   string
	Script string
}

// DeployParams parameterizes the deployment unit for one project.
type DeployParams struct {
	ProjectName  string
	RemotePath   string
	RemoteLog    string
	RulePath     string
	RuleLink     string
	Rule         string // rendered nginx server block
	InternalPort int

	// UseCompose selects the multi-container deploy path. When false the
	// project is built from its Dockerfile and run as a single container.
	UseCompose bool
}

// TeardownParams parameterizes the teardown unit.
type TeardownParams struct {
	ProjectName string
	RemotePath  string
	RulePath    string
	RuleLink    string
}

// =============================================================================
// Deployment Steps
// =============================================================================

// DeploySteps returns the ordered steps of the deployment unit. Every step
// is presence-guarded so re-running the unit against an already provisioned
// host converges to the same end state without duplicating side effects.
func DeploySteps(p DeployParams) []Step {
	return []Step{
		privilegeCheck(),
		packageIndex(),
		basePackages(),
		dockerEngine(),
		composePlugin(),
		dockerGroup(),
		nginxEngine(),
		services(),
		deployStack(p),
		proxyRule(p),
		remoteValidate(p),
	}
}

// privilegeCheck verifies passwordless elevated privilege before any
// install step runs. Its absence is fatal to the whole unit.
func privilegeCheck() Step {
	return Step{
		Name: "privilege-check",
		Script: fmt.Sprintf(`if ! sudo -n true 2>/dev/null; then
  fail %d "passwordless sudo is required on the remote host"
fi
sudo mkdir -p %s
log "privilege check passed"`, domain.ExitRemoteUnitFailed, domain.RemoteLogDir),
	}
}

func packageIndex() Step {
	return Step{
		Name: "package-index",
		Script: fmt.Sprintf(`log "refreshing package index"
sudo apt-get update -y -qq || fail %d "package index refresh failed"`, domain.ExitRemoteUnitFailed),
	}
}

func basePackages() Step {
	return Step{
		Name: "base-packages",
		Script: fmt.Sprintf(`log "ensuring base packages"
sudo apt-get install -y -qq ca-certificates curl gnupg rsync || fail %d "base package install failed"`, domain.ExitRemoteUnitFailed),
	}
}

// dockerEngine installs the engine only when absent. The install path adds
// the upstream apt key and repository, which is not idempotent to repeat,
// hence the command -v guard.
func dockerEngine() Step {
	return Step{
		Name: "docker-engine",
		Script: fmt.Sprintf(`if command -v docker >/dev/null 2>&1; then
  log "docker engine already present"
else
  log "installing docker engine"
  sudo install -m 0755 -d /etc/apt/keyrings
  curl -fsSL https://download.docker.com/linux/ubuntu/gpg | sudo gpg --dearmor --yes -o /etc/apt/keyrings/docker.gpg || fail %[1]d "docker signing key install failed"
  sudo chmod a+r /etc/apt/keyrings/docker.gpg
  echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/ubuntu $(. /etc/os-release && echo "$VERSION_CODENAME") stable" | sudo tee /etc/apt/sources.list.d/docker.list >/dev/null
  sudo apt-get update -y -qq || fail %[1]d "docker repository refresh failed"
  sudo apt-get install -y -qq docker-ce docker-ce-cli containerd.io docker-buildx-plugin docker-compose-plugin || fail %[1]d "docker engine install failed"
fi`, domain.ExitRemoteUnitFailed),
	}
}

func composePlugin() Step {
	return Step{
		Name: "compose-plugin",
		Script: fmt.Sprintf(`if sudo docker compose version >/dev/null 2>&1; then
  log "compose capability already present"
else
  log "installing compose plugin"
  sudo apt-get install -y -qq docker-compose-plugin || fail %d "compose plugin install failed"
fi`, domain.ExitRemoteUnitFailed),
	}
}

func dockerGroup() Step {
	return Step{
		Name: "docker-group",
		Script: fmt.Sprintf(`if id -nG "$USER" | tr ' ' '\n' | grep -qx docker; then
  log "user already in docker group"
else
  log "adding $USER to docker group"
  sudo usermod -aG docker "$USER" || fail %d "docker group membership failed"
fi`, domain.ExitRemoteUnitFailed),
	}
}

func nginxEngine() Step {
	return Step{
		Name: "nginx-engine",
		Script: fmt.Sprintf(`if command -v nginx >/dev/null 2>&1; then
  log "nginx already present"
else
  log "installing nginx"
  sudo apt-get install -y -qq nginx || fail %d "nginx install failed"
fi`, domain.ExitRemoteUnitFailed),
	}
}

func services() Step {
	return Step{
		Name: "services",
		Script: fmt.Sprintf(`log "ensuring services are enabled and running"
sudo systemctl enable --now docker || fail %[1]d "docker service not running"
sudo systemctl enable --now nginx || fail %[1]d "nginx service not running"`, domain.ExitRemoteUnitFailed),
	}
}

// deployStack unconditionally stops and removes any existing stack for the
// project (tolerating "nothing to remove"), then builds and starts fresh,
// blocking until the engine reports the stack up.
func deployStack(p DeployParams) Step {
	if p.UseCompose {
		return Step{
			Name: "deploy-stack",
			Script: fmt.Sprintf(`cd %[2]s || fail %[1]d "remote project directory missing"
log "stopping existing stack"
sudo docker compose down --remove-orphans >/dev/null 2>&1 || true
log "building and starting stack"
sudo docker compose up -d --build --wait || fail %[1]d "stack failed to reach a ready state"`,
				domain.ExitRemoteUnitFailed, p.RemotePath),
		}
	}
	return Step{
		Name: "deploy-stack",
		Script: fmt.Sprintf(`cd %[2]s || fail %[1]d "remote project directory missing"
log "stopping existing container"
sudo docker stop %[3]s >/dev/null 2>&1 || true
sudo docker rm %[3]s >/dev/null 2>&1 || true
log "building image"
sudo docker build -t %[3]s . || fail %[1]d "image build failed"
log "starting container"
sudo docker run -d --restart unless-stopped --name %[3]s -p 127.0.0.1:%[4]d:%[4]d %[3]s || fail %[1]d "container failed to start"`,
			domain.ExitRemoteUnitFailed, p.RemotePath, p.ProjectName, p.InternalPort),
	}
}

// proxyRule writes the generated rule, validates it with nginx -t before
// any reload, and activates it via a live reload so unrelated traffic is
// never dropped. A rejected rule aborts without reloading AND rolls the
// enabled set back: the previous rule file is restored (or, on a first
// deploy, the broken rule and its symlink are removed), so a reload or
// restart triggered outside this run never trips over a config that
// already failed validation.
func proxyRule(p DeployParams) Step {
	return Step{
		Name: "proxy-rule",
		Script: fmt.Sprintf(`log "writing proxy rule"
if [ -f %[2]s ]; then sudo cp -p %[2]s %[2]s.prev; fi
sudo tee %[2]s >/dev/null <<'SHIPWAY_RULE_EOF'
%[5]s
SHIPWAY_RULE_EOF
sudo ln -sf %[2]s %[3]s
if ! sudo nginx -t >/dev/null 2>&1; then
  if [ -f %[2]s.prev ]; then
    sudo mv %[2]s.prev %[2]s
  else
    sudo rm -f %[3]s %[2]s
  fi
  fail %[1]d "nginx rejected the generated rule; previous configuration restored"
fi
sudo rm -f %[2]s.prev
log "reloading nginx"
sudo systemctl reload nginx || fail %[4]d "nginx reload failed"`,
			domain.ExitProxyConfigInvalid, p.RulePath, p.RuleLink,
			domain.ExitRemoteUnitFailed, strings.TrimRight(p.Rule, "\n")),
	}
}

// remoteValidate counts running containers for the project's stack and
// requires at least one.
func remoteValidate(p DeployParams) Step {
	filter := fmt.Sprintf("label=com.docker.compose.project=%s", p.ProjectName)
	if !p.UseCompose {
		filter = fmt.Sprintf("name=^%s$", p.ProjectName)
	}
	return Step{
		Name: "remote-validate",
		Script: fmt.Sprintf(`RUNNING=$(sudo docker ps --filter %[2]q --filter "status=running" -q | wc -l)
if [ "$RUNNING" -lt 1 ]; then
  fail %[1]d "no running containers for project %[3]s"
fi
log "running containers: $RUNNING"`, domain.ExitNoRunningContainers, filter, p.ProjectName),
	}
}

// =============================================================================
// Teardown Steps
// =============================================================================

// TeardownSteps returns the best-effort reverse sequence. Missing resources
// are tolerated step by step; only a failed privilege check aborts, because
// without elevation none of the removals can be attempted.
func TeardownSteps(p TeardownParams) []Step {
	return []Step{
		{
			Name: "privilege-check",
			Script: `if ! sudo -n true 2>/dev/null; then
  fail 1 "passwordless sudo is required on the remote host"
fi
log "privilege check passed"`,
		},
		{
			Name: "remove-stack",
			Script: fmt.Sprintf(`if [ -d %[1]s ]; then
  log "stopping project stack"
  (cd %[1]s && sudo docker compose down --remove-orphans >/dev/null 2>&1) || true
fi
sudo docker stop %[2]s >/dev/null 2>&1 || true
sudo docker rm %[2]s >/dev/null 2>&1 || true`, p.RemotePath, p.ProjectName),
		},
		{
			Name: "remove-proxy-rule",
			Script: fmt.Sprintf(`log "removing proxy rule"
sudo rm -f %s %s || true`, p.RuleLink, p.RulePath),
		},
		{
			Name: "reload-proxy",
			Script: `if command -v nginx >/dev/null 2>&1 && sudo nginx -t >/dev/null 2>&1; then
  sudo systemctl reload nginx || true
fi`,
		},
		{
			Name: "remove-project-dir",
			Script: fmt.Sprintf(`log "removing project directory"
sudo rm -rf %s || true`, p.RemotePath),
		},
	}
}
