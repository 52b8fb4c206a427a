package domain

// =============================================================================
// Pipeline Stages
// =============================================================================

// Stage is one ordered unit of the deployment pipeline. Stages run strictly
// in order; the first failure aborts the run and no downstream stage runs.
// No stage is retried automatically.
type Stage string

const (
	StageParamValidation  Stage = "param-validation"
	StageLocalSync        Stage = "local-sync"
	StageFileVerification Stage = "file-verification"
	StageConnectivity     Stage = "connectivity-check"
	StageTransfer         Stage = "transfer"
	StageRemoteExecution  Stage = "remote-execution"
	StageExternalValidate Stage = "external-validation"

	// StageTeardown is not part of the deployment pipeline; it names the
	// independent cleanup path in logs and results.
	StageTeardown Stage = "teardown"
)

// PipelineOrder is the fixed execution order of the deployment pipeline.
var PipelineOrder = []Stage{
	StageParamValidation,
	StageLocalSync,
	StageFileVerification,
	StageConnectivity,
	StageTransfer,
	StageRemoteExecution,
	StageExternalValidate,
}

// =============================================================================
// Exit Codes
// =============================================================================

// Exit codes are a stable compatibility surface. Each documented failure
// path yields exactly one of these codes; they must not be renumbered.
const (
	ExitSuccess             = 0
	ExitUnexpectedFault     = 10
	ExitInterrupted         = 11
	ExitTeardownFailed      = 12
	ExitMissingParameter    = 20
	ExitUpdateFailed        = 21
	ExitCheckoutFailed      = 22
	ExitMissingDescriptor   = 23
	ExitConnectivityFailed  = 24
	ExitTransferFailed      = 25
	ExitProxyConfigInvalid  = 31
	ExitNoRunningContainers = 32
	ExitRemoteUnitFailed    = 33
	ExitExternalValidation  = 40
)
