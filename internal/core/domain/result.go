package domain

import "time"

// =============================================================================
// Run Result
// =============================================================================

// RunResult is the terminal outcome of one pipeline run. Exactly one
// RunResult is produced per run, regardless of the path taken.
type RunResult struct {
	// RunID correlates log lines and history rows for one run.
	RunID string

	// Project is the identity the run operated on. Empty when the run
	// failed before identity derivation.
	Project string

	// Stage is the stage that terminated the run. Empty on success.
	Stage Stage

	// ExitCode is the documented exit code for the outcome.
	ExitCode int

	// Message is a human-readable summary of the outcome.
	Message string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Success reports whether the run reached the end of the pipeline.
func (r RunResult) Success() bool {
	return r.ExitCode == ExitSuccess
}
