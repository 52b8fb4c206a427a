package nginx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// GenerateRule Tests
// =============================================================================

func TestGenerateRule_Basic(t *testing.T) {
	rule := GenerateRule(RuleParams{
		ProjectName: "my-app",
		ServerName:  "203.0.113.10",
		Port:        8080,
	})

	assert.Contains(t, rule, "listen 80;")
	assert.Contains(t, rule, "server_name 203.0.113.10;")
	assert.Contains(t, rule, "proxy_pass http://localhost:8080;")
	assert.Contains(t, rule, "project my-app")
}

func TestGenerateRule_UpstreamMatchesConfiguredPort(t *testing.T) {
	rule := GenerateRule(RuleParams{ProjectName: "api", ServerName: "example.com", Port: 3000})

	port, err := UpstreamPort(rule)
	require.NoError(t, err)
	assert.Equal(t, 3000, port)
}

func TestGenerateRule_RedeployReplacesWholeRule(t *testing.T) {
	// Regenerating with a different port must leave no trace of the old
	// port; the rule is overwritten, never merged.
	old := GenerateRule(RuleParams{ProjectName: "my-app", ServerName: "h", Port: 8080})
	updated := GenerateRule(RuleParams{ProjectName: "my-app", ServerName: "h", Port: 9090})

	assert.NotContains(t, updated, "8080")
	oldPort, err := UpstreamPort(old)
	require.NoError(t, err)
	newPort, err := UpstreamPort(updated)
	require.NoError(t, err)
	assert.Equal(t, 8080, oldPort)
	assert.Equal(t, 9090, newPort)
}

func TestGenerateRule_SingleServerBlock(t *testing.T) {
	rule := GenerateRule(RuleParams{ProjectName: "a", ServerName: "b", Port: 1})
	assert.Equal(t, 1, strings.Count(rule, "server {"))
}

// =============================================================================
// UpstreamPort Tests
// =============================================================================

func TestUpstreamPort_NotGenerated(t *testing.T) {
	_, err := UpstreamPort("server { listen 80; }")
	assert.Error(t, err)
}
