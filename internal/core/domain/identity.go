package domain

import (
	"fmt"
	"path"
	"strings"
)

// =============================================================================
// Project Identity
// =============================================================================

const (
	// RemoteBaseDir is the fixed base directory for deployed projects on
	// the remote host. The project path is always RemoteBaseDir/<name>.
	RemoteBaseDir = "/srv/shipway"

	// RemoteLogDir is where per-project remote logs are appended.
	RemoteLogDir = "/var/log/shipway"

	// NginxAvailableDir holds generated proxy rule files.
	NginxAvailableDir = "/etc/nginx/sites-available"

	// NginxEnabledDir holds symlinks to active proxy rule files.
	NginxEnabledDir = "/etc/nginx/sites-enabled"
)

// ProjectIdentity is the single name a deployment run is keyed by.
// It is derived exactly once from the repository URL, immediately after
// configuration is resolved, and is identical across all stages of a run.
// Two runs against the same repository URL always resolve to the same
// identity, which is what makes the remote path, the container stack name
// and the proxy rule name deterministic.
type ProjectIdentity struct {
	// Name is the slugified project name, e.g. "my-app" for
	// https://example.com/team/My-App.git.
	Name string
}

// DeriveIdentity extracts the project identity from a repository URL.
// The name is the last path component with any ".git" suffix removed,
// slugified so it is safe as a directory name, a container name and an
// nginx rule filename.
//
// Example:
//
//	DeriveIdentity("https://github.com/acme/Shop-Frontend.git")
//	// returns ProjectIdentity{Name: "shop-frontend"}
func DeriveIdentity(repoURL string) (ProjectIdentity, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(repoURL), "/")
	if trimmed == "" {
		return ProjectIdentity{}, fmt.Errorf("empty repository URL")
	}
	base := path.Base(trimmed)
	base = strings.TrimSuffix(base, ".git")
	name := Slugify(base)
	if name == "" {
		return ProjectIdentity{}, fmt.Errorf("cannot derive project name from %q", repoURL)
	}
	return ProjectIdentity{Name: name}, nil
}

// RemotePath returns the deterministic remote project directory.
func (p ProjectIdentity) RemotePath() string {
	return RemoteBaseDir + "/" + p.Name
}

// RemoteLogPath returns the per-project remote log file.
func (p ProjectIdentity) RemoteLogPath() string {
	return RemoteLogDir + "/" + p.Name + ".log"
}

// ProxyRulePath returns the path of the generated nginx rule file.
func (p ProjectIdentity) ProxyRulePath() string {
	return NginxAvailableDir + "/" + p.Name + ".conf"
}

// ProxyRuleLink returns the sites-enabled symlink for the rule file.
func (p ProjectIdentity) ProxyRuleLink() string {
	return NginxEnabledDir + "/" + p.Name + ".conf"
}

// WorkspaceDir returns the local workspace directory under the given root.
func (p ProjectIdentity) WorkspaceDir(workRoot string) string {
	return path.Join(workRoot, p.Name)
}

// =============================================================================
// Slug Generation
// =============================================================================

// Slugify converts a name to a filesystem- and DNS-safe slug.
//
// The transformation rules are:
//   - Lowercase letters (a-z), digits and hyphens are kept as-is
//   - Uppercase letters are converted to lowercase
//   - Spaces, underscores and dots are converted to hyphens
//   - All other characters are removed
//
// This is a pure function with no side effects.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r == ' ' || r == '_' || r == '.':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
