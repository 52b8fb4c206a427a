// Package git implements the local repository synchronizer: an
// authenticated, branch-restricted clone-or-pull into a deterministic
// workspace, shelling out to the git binary.
package git

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/charmbracelet/log"
)

// Env vars that are allowed to be inherited from the os.
var allowedEnvVars = []string{"HOME", "PATH", "http_proxy", "https_proxy", "no_proxy"}

// =============================================================================
// Credential Handling
// =============================================================================

// tokenUser is the fixed username for token-based HTTPS authentication.
const tokenUser = "x-access-token"

// AuthURL injects the access token into an HTTPS repository URL. The
// result exists only for the duration of a single git invocation; it is
// never written to the repository's persistent configuration and never
// logged.
func AuthURL(repoURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil {
		return "", fmt.Errorf("parse repository URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("unsupported repository URL scheme %q", u.Scheme)
	}
	u.User = url.UserPassword(tokenUser, token)
	return u.String(), nil
}

// SafeURL returns a loggable representation of a repository URL with any
// userinfo credential stripped.
func SafeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}

// redact removes the token from any string that might reach a log line or
// an error message. Git echoes the remote URL on failure, so every error
// path must pass through here.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}

// =============================================================================
// Synchronizer
// =============================================================================

// Synchronizer performs the clone-or-pull of the source repository.
type Synchronizer struct {
	logger *log.Logger

	// execGit is swappable for tests.
	execGit func(ctx context.Context, dir string, args ...string) error
}

// NewSynchronizer creates a synchronizer that invokes the git binary.
func NewSynchronizer(logger *log.Logger) *Synchronizer {
	s := &Synchronizer{logger: logger}
	s.execGit = s.runGitCmd
	return s
}

// NeedsCheckout reports whether the workspace requires a fresh checkout.
// Checkout occurs iff the workspace directory is absent; update occurs iff
// it is present; never both, never neither. A workspace that exists but
// holds no repository is neither case and is rejected by Sync.
func NeedsCheckout(workspace string) bool {
	_, err := os.Stat(workspace)
	return err != nil
}

// isRepository reports whether the workspace contains git metadata.
func isRepository(workspace string) bool {
	_, err := os.Stat(filepath.Join(workspace, ".git"))
	return err == nil
}

// Sync brings the workspace up to date with the configured branch.
//
// Fresh checkout clones branch-restricted, then immediately resets the
// persisted remote URL to the credential-free form. Update fetches the
// branch through a transient authenticated URL and hard-resets the
// workspace onto it, so re-invocation after success is a no-op when no
// upstream change exists and applies only the delta otherwise.
func (s *Synchronizer) Sync(ctx context.Context, cfg domain.DeploymentConfig, workspace string) error {
	branch := cfg.Branch
	if branch == "" {
		branch = domain.DefaultBranch
	}

	authURL, err := AuthURL(cfg.RepoURL, cfg.Token)
	if err != nil {
		return domain.NewPipelineError(domain.StageLocalSync, domain.ErrCheckoutFailed, err, "prepare repository URL")
	}

	if NeedsCheckout(workspace) {
		s.logger.Info("checking out repository", "url", SafeURL(cfg.RepoURL), "branch", branch, "workspace", workspace)
		if err := s.checkout(ctx, authURL, cfg, branch, workspace); err != nil {
			return domain.NewPipelineError(domain.StageLocalSync, domain.ErrCheckoutFailed, err, "clone repository")
		}
		return nil
	}

	// A present workspace without git metadata would make both clone (into
	// a non-empty directory) and fetch fail with confusing output; reject
	// it outright so the operator knows what to remove.
	if !isRepository(workspace) {
		return domain.NewPipelineError(domain.StageLocalSync, domain.ErrCheckoutFailed,
			fmt.Errorf("workspace %s exists but is not a repository; remove it and rerun", workspace), "inspect workspace")
	}

	s.logger.Info("updating repository", "url", SafeURL(cfg.RepoURL), "branch", branch, "workspace", workspace)
	if err := s.update(ctx, authURL, cfg, branch, workspace); err != nil {
		return domain.NewPipelineError(domain.StageLocalSync, domain.ErrUpdateFailed, err, "update repository")
	}
	return nil
}

func (s *Synchronizer) checkout(ctx context.Context, authURL string, cfg domain.DeploymentConfig, branch, workspace string) error {
	if err := os.MkdirAll(filepath.Dir(workspace), 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	if err := s.execGit(ctx, "", "clone", "--branch", branch, "--single-branch", authURL, workspace); err != nil {
		return fmt.Errorf("%s", redact(err.Error(), cfg.Token))
	}
	// The clone persisted the authenticated URL; replace it with the
	// credential-free form so the token never survives the operation.
	if err := s.execGit(ctx, workspace, "remote", "set-url", "origin", cfg.RepoURL); err != nil {
		return fmt.Errorf("%s", redact(err.Error(), cfg.Token))
	}
	return nil
}

func (s *Synchronizer) update(ctx context.Context, authURL string, cfg domain.DeploymentConfig, branch, workspace string) error {
	if err := s.execGit(ctx, workspace, "fetch", authURL, branch); err != nil {
		return fmt.Errorf("%s", redact(err.Error(), cfg.Token))
	}
	if err := s.execGit(ctx, workspace, "checkout", "-B", branch, "FETCH_HEAD"); err != nil {
		return fmt.Errorf("%s", redact(err.Error(), cfg.Token))
	}
	if err := s.execGit(ctx, workspace, "reset", "--hard", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("%s", redact(err.Error(), cfg.Token))
	}
	return nil
}

// runGitCmd executes one git invocation with a minimal environment.
func (s *Synchronizer) runGitCmd(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	env := []string{"GIT_TERMINAL_PROMPT=0"}
	for _, k := range allowedEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	cmd.Env = env

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("git %s: %w", args[0], err)
		}
		return fmt.Errorf("git %s: %s", args[0], msg)
	}
	return nil
}
