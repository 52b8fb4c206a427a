// Package nginx provides pure functions for generating nginx reverse proxy
// rule files.
//
// This package contains the functional core logic for rendering the server
// block that forwards public port 80 traffic to a project's internal
// container port. All functions are pure (no I/O, no side effects); writing
// the rule to the remote host and activating it is the remote execution
// unit's job.
//
// # Functions
//
//   - GenerateRule: Render the server block for a project
//   - UpstreamPort: Extract the proxied port back out of a rendered rule
//
// # Usage
//
// The remote script stage embeds the rendered rule into a heredoc:
//
//	rule := nginx.GenerateRule(nginx.RuleParams{
//	    ProjectName: identity.Name,
//	    ServerName:  cfg.Host,
//	    Port:        cfg.InternalPort,
//	})
package nginx
