package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Port Validation Tests
// =============================================================================

func TestValidatePort_Accepts(t *testing.T) {
	for _, raw := range []string{"1", "80", "8080", "65535"} {
		port, err := ValidatePort(raw)
		require.NoError(t, err, "port %q", raw)
		assert.Positive(t, port)
	}
}

func TestValidatePort_Rejects(t *testing.T) {
	for _, raw := range []string{"0", "65536", "abc", "", "-1", "80.5", " "} {
		_, err := ValidatePort(raw)
		assert.Error(t, err, "port %q", raw)
	}
}

func TestValidatePort_TrimsWhitespace(t *testing.T) {
	port, err := ValidatePort(" 8080 ")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)
}

// =============================================================================
// Config Validation Tests
// =============================================================================

func validConfig() DeploymentConfig {
	return DeploymentConfig{
		RepoURL:      "https://github.com/acme/app.git",
		Token:        "tok",
		Branch:       "main",
		SSHUser:      "deploy",
		Host:         "203.0.113.10",
		KeyPath:      "/home/op/.ssh/id_ed25519",
		InternalPort: 8080,
	}
}

func TestDeploymentConfig_Valid(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDeploymentConfig_MissingFields(t *testing.T) {
	mutations := map[string]func(*DeploymentConfig){
		"repo":  func(c *DeploymentConfig) { c.RepoURL = "" },
		"token": func(c *DeploymentConfig) { c.Token = "  " },
		"user":  func(c *DeploymentConfig) { c.SSHUser = "" },
		"host":  func(c *DeploymentConfig) { c.Host = "" },
		"key":   func(c *DeploymentConfig) { c.KeyPath = "" },
		"port":  func(c *DeploymentConfig) { c.InternalPort = 0 },
	}
	for name, mutate := range mutations {
		cfg := validConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "field %s", name)
	}
}

func TestDeploymentConfig_ReportsAllMissing(t *testing.T) {
	cfg := DeploymentConfig{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository URL")
	assert.Contains(t, err.Error(), "access token")
	assert.Contains(t, err.Error(), "internal port")
}

func TestTeardownConfig_Validate(t *testing.T) {
	cfg := TeardownConfig{
		SSHUser:     "deploy",
		Host:        "203.0.113.10",
		KeyPath:     "/home/op/.ssh/id_ed25519",
		ProjectName: "my-app",
	}
	require.NoError(t, cfg.Validate())

	cfg.ProjectName = ""
	assert.Error(t, cfg.Validate())
}
