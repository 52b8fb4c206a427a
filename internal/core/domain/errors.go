package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

// Sentinel errors for each failure kind the pipeline distinguishes.
// Components wrap these via NewPipelineError; the top-level handler maps
// them to exit codes with ExitCodeFor.
var (
	ErrMissingParameter   = errors.New("missing required parameter")
	ErrUpdateFailed       = errors.New("local update failed")
	ErrCheckoutFailed     = errors.New("local checkout failed")
	ErrMissingDescriptor  = errors.New("no build descriptor found")
	ErrConnectivityFailed = errors.New("connectivity check failed")
	ErrTransferFailed     = errors.New("file transfer failed")
	ErrProxyConfigInvalid = errors.New("proxy rule validation failed")
	ErrNoRunningContainer = errors.New("no running containers after deploy")
	ErrRemoteUnitFailed   = errors.New("remote execution unit failed")
	ErrExternalValidation = errors.New("external reachability validation failed")
	ErrTeardownFailed     = errors.New("teardown execution failed")
	ErrInterrupted        = errors.New("interrupted")
)

// PipelineError wraps a stage failure with its stage name and the sentinel
// that determines the exit code.
type PipelineError struct {
	Stage   Stage
	Message string
	Err     error // one of the sentinels above, possibly wrapping a cause
}

func (e *PipelineError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a stage failure. kind should be one of the
// sentinel errors; cause may be nil.
func NewPipelineError(stage Stage, kind error, cause error, message string) *PipelineError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &PipelineError{Stage: stage, Message: message, Err: err}
}

// ExitCodeFor maps an error to the documented exit code. A nil error maps
// to ExitSuccess; an error matching no sentinel is an unexpected fault.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	case errors.Is(err, ErrMissingParameter):
		return ExitMissingParameter
	case errors.Is(err, ErrUpdateFailed):
		return ExitUpdateFailed
	case errors.Is(err, ErrCheckoutFailed):
		return ExitCheckoutFailed
	case errors.Is(err, ErrMissingDescriptor):
		return ExitMissingDescriptor
	case errors.Is(err, ErrConnectivityFailed):
		return ExitConnectivityFailed
	case errors.Is(err, ErrTransferFailed):
		return ExitTransferFailed
	case errors.Is(err, ErrProxyConfigInvalid):
		return ExitProxyConfigInvalid
	case errors.Is(err, ErrNoRunningContainer):
		return ExitNoRunningContainers
	case errors.Is(err, ErrRemoteUnitFailed):
		return ExitRemoteUnitFailed
	case errors.Is(err, ErrExternalValidation):
		return ExitExternalValidation
	case errors.Is(err, ErrTeardownFailed):
		return ExitTeardownFailed
	default:
		return ExitUnexpectedFault
	}
}
