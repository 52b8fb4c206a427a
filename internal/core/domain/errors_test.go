package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Exit Code Mapping Tests
// =============================================================================

func TestExitCodeFor_Exhaustive(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, ExitSuccess},
		{ErrInterrupted, ExitInterrupted},
		{ErrMissingParameter, ExitMissingParameter},
		{ErrUpdateFailed, ExitUpdateFailed},
		{ErrCheckoutFailed, ExitCheckoutFailed},
		{ErrMissingDescriptor, ExitMissingDescriptor},
		{ErrConnectivityFailed, ExitConnectivityFailed},
		{ErrTransferFailed, ExitTransferFailed},
		{ErrProxyConfigInvalid, ExitProxyConfigInvalid},
		{ErrNoRunningContainer, ExitNoRunningContainers},
		{ErrRemoteUnitFailed, ExitRemoteUnitFailed},
		{ErrExternalValidation, ExitExternalValidation},
		{ErrTeardownFailed, ExitTeardownFailed},
		{errors.New("anything else"), ExitUnexpectedFault},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, ExitCodeFor(c.err), "error %v", c.err)
	}
}

func TestExitCodeFor_Wrapped(t *testing.T) {
	err := NewPipelineError(StageTransfer, ErrTransferFailed, errors.New("rsync exit 12"), "sync workspace")
	assert.Equal(t, ExitTransferFailed, ExitCodeFor(err))

	deep := fmt.Errorf("outer: %w", err)
	assert.Equal(t, ExitTransferFailed, ExitCodeFor(deep))
}

func TestPipelineError_Error(t *testing.T) {
	err := NewPipelineError(StageLocalSync, ErrCheckoutFailed, errors.New("auth"), "clone")
	assert.Contains(t, err.Error(), "local-sync")
	assert.Contains(t, err.Error(), "clone")
	assert.ErrorIs(t, err, ErrCheckoutFailed)
}

func TestPipelineError_NilCause(t *testing.T) {
	err := NewPipelineError(StageFileVerification, ErrMissingDescriptor, nil, "")
	assert.ErrorIs(t, err, ErrMissingDescriptor)
	assert.Equal(t, ExitMissingDescriptor, ExitCodeFor(err))
}
