package nginx

import (
	"fmt"
	"regexp"
	"strconv"
)

// =============================================================================
// Rule Generation
// =============================================================================

// RuleParams parameterizes the generated server block.
type RuleParams struct {
	// ProjectName keys the rule; it appears only in comments and headers
	// so operators can tell generated files apart.
	ProjectName string

	// ServerName is the nginx server_name selector, normally the host
	// address the deployment targets.
	ServerName string

	// Port is the internal container port the proxy forwards to.
	Port int
}

// GenerateRule renders the nginx server block for a project.
//
// The rule listens on public port 80, selects on ServerName and forwards
// to localhost:<Port>. One rule exists per project; redeploys overwrite
// the whole file, they never merge.
//
// Example:
//
//	GenerateRule(RuleParams{ProjectName: "my-app", ServerName: "203.0.113.10", Port: 8080})
//	// listen 80; server_name 203.0.113.10; proxy_pass http://localhost:8080;
func GenerateRule(params RuleParams) string {
	return fmt.Sprintf(`# Managed by shipway for project %[1]s. Do not edit; redeploys overwrite this file.
server {
    listen 80;
    server_name %[2]s;

    location / {
        proxy_pass http://localhost:%[3]d;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`, params.ProjectName, params.ServerName, params.Port)
}

// =============================================================================
// Rule Inspection
// =============================================================================

var upstreamRe = regexp.MustCompile(`proxy_pass\s+http://localhost:(\d+);`)

// UpstreamPort extracts the proxied port from a rendered rule. It returns
// an error when the rule contains no proxy_pass directive, which means the
// file was not generated by GenerateRule.
func UpstreamPort(rule string) (int, error) {
	m := upstreamRe.FindStringSubmatch(rule)
	if m == nil {
		return 0, fmt.Errorf("no proxy_pass upstream found in rule")
	}
	port, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("parse upstream port: %w", err)
	}
	return port, nil
}
