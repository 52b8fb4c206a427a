// Package prompt resolves run configuration. Values come from three
// sources in precedence order: environment variables (SHIPWAY_*), an
// optional YAML config file, and interactive prompts for whatever is
// still missing. The access token is only ever read from the environment
// or a prompt; it is never written back anywhere.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/artpar/shipway/internal/core/domain"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Configuration keys. Environment variables derive from these via the
// SHIPWAY_ prefix and dash-to-underscore mapping, e.g. SHIPWAY_REPO_URL.
const (
	keyRepoURL = "repo-url"
	keyToken   = "token"
	keyBranch  = "branch"
	keySSHUser = "ssh-user"
	keyHost    = "host"
	keyKeyPath = "key-path"
	keyPort    = "port"
	keyProject = "project"
)

// =============================================================================
// Resolver
// =============================================================================

// Resolver assembles a complete configuration, prompting interactively
// for anything the file and environment did not provide.
type Resolver struct {
	v      *viper.Viper
	logger *log.Logger

	// askOne is swapped out in tests; defaults to survey.AskOne.
	askOne func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error
}

// NewResolver loads the optional config file and environment. configFile
// may be empty, in which case shipway.yaml is searched for in the current
// directory and ~/.shipway.
func NewResolver(logger *log.Logger, configFile string) (*Resolver, error) {
	v := viper.New()
	v.SetEnvPrefix("SHIPWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(keyBranch, domain.DefaultBranch)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("shipway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".shipway"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if v.ConfigFileUsed() != "" {
		logger.Debug("loaded configuration file", "path", v.ConfigFileUsed())
	}

	return &Resolver{v: v, logger: logger, askOne: survey.AskOne}, nil
}

// ResolveDeployment produces a complete deployment configuration.
func (r *Resolver) ResolveDeployment() (domain.DeploymentConfig, error) {
	cfg := domain.DeploymentConfig{
		RepoURL:      r.v.GetString(keyRepoURL),
		Token:        r.v.GetString(keyToken),
		Branch:       r.v.GetString(keyBranch),
		SSHUser:      r.v.GetString(keySSHUser),
		Host:         r.v.GetString(keyHost),
		KeyPath:      r.v.GetString(keyKeyPath),
		InternalPort: r.v.GetInt(keyPort),
	}

	if err := r.fillString(&cfg.RepoURL, &survey.Input{Message: "Repository HTTPS URL:"}, survey.WithValidator(RepoURLValidator)); err != nil {
		return cfg, err
	}
	if err := r.fillString(&cfg.Token, &survey.Password{Message: "Access token:"}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}
	if err := r.fillString(&cfg.SSHUser, &survey.Input{Message: "SSH username:"}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}
	if err := r.fillString(&cfg.Host, &survey.Input{Message: "Remote host address:"}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}
	if err := r.fillString(&cfg.KeyPath, &survey.Input{
		Message: "SSH private key path:",
		Default: defaultKeyPath(),
	}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}
	if err := r.fillPort(&cfg.InternalPort); err != nil {
		return cfg, err
	}

	cfg.KeyPath = expandHome(cfg.KeyPath)
	return cfg, nil
}

// ResolveTeardown produces the reduced teardown parameter set. The
// project name may be given directly or derived from a configured
// repository URL.
func (r *Resolver) ResolveTeardown() (domain.TeardownConfig, error) {
	cfg := domain.TeardownConfig{
		SSHUser:     r.v.GetString(keySSHUser),
		Host:        r.v.GetString(keyHost),
		KeyPath:     r.v.GetString(keyKeyPath),
		ProjectName: r.v.GetString(keyProject),
	}

	if cfg.ProjectName == "" {
		if repoURL := r.v.GetString(keyRepoURL); repoURL != "" {
			if identity, err := domain.DeriveIdentity(repoURL); err == nil {
				cfg.ProjectName = identity.Name
			}
		}
	}

	if err := r.fillString(&cfg.ProjectName, &survey.Input{Message: "Project name to tear down:"}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}
	if err := r.fillString(&cfg.SSHUser, &survey.Input{Message: "SSH username:"}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}
	if err := r.fillString(&cfg.Host, &survey.Input{Message: "Remote host address:"}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}
	if err := r.fillString(&cfg.KeyPath, &survey.Input{
		Message: "SSH private key path:",
		Default: defaultKeyPath(),
	}, survey.WithValidator(survey.Required)); err != nil {
		return cfg, err
	}

	cfg.KeyPath = expandHome(cfg.KeyPath)
	return cfg, nil
}

func (r *Resolver) fillString(target *string, p survey.Prompt, opts ...survey.AskOpt) error {
	if strings.TrimSpace(*target) != "" {
		return nil
	}
	return r.askOne(p, target, opts...)
}

// fillPort keeps asking until the answer is a valid port; the validator
// rejects non-numeric and out-of-range input before it is accepted.
func (r *Resolver) fillPort(target *int) error {
	if *target >= 1 && *target <= 65535 {
		return nil
	}
	if *target != 0 {
		r.logger.Warn("configured port is out of range, asking again", "port", *target)
	}

	var raw string
	if err := r.askOne(&survey.Input{Message: "Application internal port:"}, &raw, survey.WithValidator(PortValidator)); err != nil {
		return err
	}
	port, err := domain.ValidatePort(raw)
	if err != nil {
		return err
	}
	*target = port
	return nil
}

// =============================================================================
// Validators
// =============================================================================

// PortValidator adapts port validation to the prompt library, so invalid
// answers are re-asked inline instead of failing the run.
func PortValidator(ans interface{}) error {
	raw, ok := ans.(string)
	if !ok {
		return fmt.Errorf("expected a text answer, got %T", ans)
	}
	_, err := domain.ValidatePort(raw)
	return err
}

// RepoURLValidator accepts only http(s) repository URLs, matching what
// token-based authentication supports.
func RepoURLValidator(ans interface{}) error {
	raw, ok := ans.(string)
	if !ok {
		return fmt.Errorf("expected a text answer, got %T", ans)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("repository URL must not be empty")
	}
	if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
		return errors.New("repository URL must start with https:// or http://")
	}
	return nil
}

func defaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "id_rsa")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
