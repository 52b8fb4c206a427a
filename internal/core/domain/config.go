package domain

import (
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/hashicorp/go-multierror"
)

// =============================================================================
// Deployment Configuration
// =============================================================================

// DefaultBranch is used when no branch is configured.
const DefaultBranch = "main"

// DeploymentConfig holds every parameter a deployment run needs.
// It is resolved once (interactively or from a config file) and is
// immutable for the lifetime of the run.
type DeploymentConfig struct {
	// RepoURL is the HTTPS clone URL of the source repository.
	RepoURL string

	// Token is the access token used for source-control authentication.
	// It is injected transiently into git operations and must never be
	// written to persistent configuration or logs.
	Token string

	// Branch is the branch to deploy. Defaults to "main".
	Branch string

	// SSHUser is the login user on the remote host.
	SSHUser string

	// Host is the remote host address (name or IP).
	Host string

	// KeyPath is the path to the SSH private key file.
	KeyPath string

	// InternalPort is the port the application listens on inside the
	// container. The reverse proxy forwards public port 80 to it.
	InternalPort int
}

// TeardownConfig holds the reduced parameter set for the teardown path.
// Teardown needs only SSH credentials and the project name; it never
// touches the source repository.
type TeardownConfig struct {
	SSHUser     string
	Host        string
	KeyPath     string
	ProjectName string
}

// ValidatePort parses and validates a user-supplied internal port.
// Valid ports are integers in [1, 65535].
//
// Example:
//
//	ValidatePort("8080")  // returns 8080, nil
//	ValidatePort("0")     // returns 0, error
//	ValidatePort("abc")   // returns 0, error
func ValidatePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("port must not be empty")
	}
	port, err := nat.ParsePort(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: must be an integer between 1 and 65535", raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return port, nil
}

// Validate checks that every required field is present and well-formed.
// All missing parameters are reported together so the operator fixes
// them in one pass.
func (c *DeploymentConfig) Validate() error {
	var result *multierror.Error
	required := []struct {
		name  string
		value string
	}{
		{"repository URL", c.RepoURL},
		{"access token", c.Token},
		{"SSH username", c.SSHUser},
		{"host address", c.Host},
		{"private key path", c.KeyPath},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			result = multierror.Append(result, fmt.Errorf("missing required parameter: %s", f.name))
		}
	}
	if c.InternalPort < 1 || c.InternalPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("missing required parameter: internal port (got %d)", c.InternalPort))
	}
	return result.ErrorOrNil()
}

// Validate checks the teardown parameter set.
func (c *TeardownConfig) Validate() error {
	var result *multierror.Error
	required := []struct {
		name  string
		value string
	}{
		{"SSH username", c.SSHUser},
		{"host address", c.Host},
		{"private key path", c.KeyPath},
		{"project name", c.ProjectName},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			result = multierror.Append(result, fmt.Errorf("missing required parameter: %s", f.name))
		}
	}
	return result.ErrorOrNil()
}
