package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/artpar/shipway/internal/core/domain"
	"github.com/artpar/shipway/internal/shell/cleanup"
	"github.com/artpar/shipway/internal/shell/git"
	"github.com/artpar/shipway/internal/shell/history"
	"github.com/artpar/shipway/internal/shell/logging"
	"github.com/artpar/shipway/internal/shell/pipeline"
	"github.com/artpar/shipway/internal/shell/prompt"
	"github.com/artpar/shipway/internal/shell/sshx"
	"github.com/artpar/shipway/internal/shell/transfer"
	"github.com/artpar/shipway/internal/shell/validate"
	"github.com/artpar/shipway/internal/shell/verify"
	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// appPaths are the controller-side directories one installation uses.
type appPaths struct {
	workspaces string
	logs       string
	historyDB  string
}

func defaultPaths() (appPaths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return appPaths{}, fmt.Errorf("resolve home directory: %w", err)
	}
	base := filepath.Join(home, ".shipway")
	return appPaths{
		workspaces: filepath.Join(base, "workspaces"),
		logs:       filepath.Join(base, "logs"),
		historyDB:  filepath.Join(base, "history.db"),
	}, nil
}

func newRootCmd(exitCode *int) *cobra.Command {
	var (
		teardown   bool
		configFile string
	)

	cmd := &cobra.Command{
		Use:           "shipway",
		Short:         "Deploy a containerized app from a git repository to a remote host",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `Shipway clones or updates a git repository, verifies it defines a
container build, transfers it to a remote host over SSH, provisions
Docker and nginx there, starts the stack and validates it answers over
plain HTTP. The --teardown flag removes such a deployment instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if teardown {
				*exitCode = runTeardown(cmd.Context(), configFile)
			} else {
				*exitCode = runDeploy(cmd.Context(), configFile)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a shipway.yaml config file")
	cmd.Flags().BoolVar(&teardown, "teardown", false, "remove the deployment instead of creating it")

	cmd.AddCommand(newHistoryCmd(exitCode))
	return cmd
}

// =============================================================================
// Deploy
// =============================================================================

func runDeploy(parent context.Context, configFile string) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliLogger := log.New(os.Stderr)

	paths, err := defaultPaths()
	if err != nil {
		cliLogger.Error("cannot determine application directories", "err", err)
		return domain.ExitUnexpectedFault
	}

	resolver, err := prompt.NewResolver(cliLogger, configFile)
	if err != nil {
		cliLogger.Error("configuration load failed", "err", err)
		return domain.ExitUnexpectedFault
	}
	cfg, err := resolver.ResolveDeployment()
	if err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			cliLogger.Warn("interrupted during configuration")
			return domain.ExitInterrupted
		}
		cliLogger.Error("configuration prompt failed", "err", err)
		return domain.ExitUnexpectedFault
	}

	runID := uuid.NewString()[:8]
	rl, err := logging.Open(paths.logs, runID, os.Stderr)
	if err != nil {
		cliLogger.Error("cannot open run log", "err", err)
		return domain.ExitUnexpectedFault
	}
	defer rl.Close()
	logger := rl.Logger

	// Parameters are checked before anything touches the network so a
	// config that is both incomplete and pointing at a dead host still
	// reports the parameter problem.
	if err := cfg.Validate(); err != nil {
		result := failedResult(runID, domain.NewPipelineError(domain.StageParamValidation, domain.ErrMissingParameter, err, ""))
		return finalize(logger, paths.historyDB, result)
	}

	sshClient, err := sshx.NewClient(sshx.Config{
		User:    cfg.SSHUser,
		Host:    cfg.Host,
		KeyPath: cfg.KeyPath,
	})
	if err != nil {
		// An unreadable or unparsable key means the credentials cannot
		// work, the same class of failure the probe reports.
		result := failedResult(runID, domain.NewPipelineError(domain.StageConnectivity, domain.ErrConnectivityFailed, err, "load SSH credentials"))
		return finalize(logger, paths.historyDB, result)
	}
	defer sshClient.Close()

	driver := pipeline.New(cfg, paths.workspaces, logger, rl.RemoteEcho(), pipeline.Deps{
		Sync:     git.NewSynchronizer(logger),
		Verify:   pipeline.VerifierFunc(verify.Workspace),
		Prober:   sshClient,
		Transfer: transfer.NewAgent(logger, sshClient),
		Runner:   sshClient,
		External: validate.NewExternal(logger, 0),
	})

	result := driver.Run(ctx, runID)
	return finalize(logger, paths.historyDB, result)
}

// =============================================================================
// Teardown
// =============================================================================

func runTeardown(parent context.Context, configFile string) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliLogger := log.New(os.Stderr)

	paths, err := defaultPaths()
	if err != nil {
		cliLogger.Error("cannot determine application directories", "err", err)
		return domain.ExitUnexpectedFault
	}

	resolver, err := prompt.NewResolver(cliLogger, configFile)
	if err != nil {
		cliLogger.Error("configuration load failed", "err", err)
		return domain.ExitUnexpectedFault
	}
	cfg, err := resolver.ResolveTeardown()
	if err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			cliLogger.Warn("interrupted during configuration")
			return domain.ExitInterrupted
		}
		cliLogger.Error("configuration prompt failed", "err", err)
		return domain.ExitUnexpectedFault
	}

	runID := uuid.NewString()[:8]
	rl, err := logging.Open(paths.logs, runID, os.Stderr)
	if err != nil {
		cliLogger.Error("cannot open run log", "err", err)
		return domain.ExitUnexpectedFault
	}
	defer rl.Close()
	logger := rl.Logger

	result := domain.RunResult{RunID: runID, Project: cfg.ProjectName, StartedAt: time.Now()}

	sshClient, err := sshx.NewClient(sshx.Config{
		User:    cfg.SSHUser,
		Host:    cfg.Host,
		KeyPath: cfg.KeyPath,
	})
	if err != nil {
		err = domain.NewPipelineError(domain.StageTeardown, domain.ErrTeardownFailed, err, "load SSH credentials")
	} else {
		defer sshClient.Close()
		err = cleanup.NewTeardown(logger, sshClient).Run(ctx, cfg, rl.RemoteEcho())
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", domain.ErrInterrupted, err)
		}
	}

	result.FinishedAt = time.Now()
	result.ExitCode = domain.ExitCodeFor(err)
	result.Stage = domain.StageTeardown
	if err != nil {
		result.Message = err.Error()
	} else {
		result.Message = fmt.Sprintf("removed %s from %s", cfg.ProjectName, cfg.Host)
	}
	return finalize(logger, paths.historyDB, result)
}

// =============================================================================
// Finalization
// =============================================================================

// failedResult builds the terminal result for a run that failed before
// the pipeline driver took over.
func failedResult(runID string, err error) domain.RunResult {
	now := time.Now()
	result := domain.RunResult{
		RunID:      runID,
		ExitCode:   domain.ExitCodeFor(err),
		Message:    err.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
	var perr *domain.PipelineError
	if errors.As(err, &perr) {
		result.Stage = perr.Stage
	}
	return result
}

// finalize runs exactly once per run: it writes the terminal log line,
// prints the operator-facing summary, records history best-effort, and
// yields the process exit code. A history failure never changes the code.
func finalize(logger *log.Logger, historyDB string, result domain.RunResult) int {
	if result.Success() {
		logger.Info("run finished", "code", result.ExitCode, "duration", result.FinishedAt.Sub(result.StartedAt).Round(time.Second))
		color.Green("✓ %s", result.Message)
	} else {
		logger.Error("run failed", "code", result.ExitCode, "stage", string(result.Stage), "reason", result.Message)
		color.Red("✗ exit %d: %s", result.ExitCode, result.Message)
	}

	if err := recordHistory(historyDB, result); err != nil {
		logger.Warn("could not record run history", "err", err)
	}
	return result.ExitCode
}

func recordHistory(historyDB string, result domain.RunResult) error {
	if err := os.MkdirAll(filepath.Dir(historyDB), 0o755); err != nil {
		return err
	}
	store, err := history.Open(historyDB)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return store.RecordRun(ctx, result)
}
