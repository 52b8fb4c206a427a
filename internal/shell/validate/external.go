// Package validate implements the external reachability validator: the
// final pipeline stage, run on the controller after the remote unit has
// already reported the stack healthy from the inside.
package validate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/charmbracelet/log"
)

// =============================================================================
// External Validator
// =============================================================================

// External probes the deployed application over plain HTTP on the
// remote host's public port.
type External struct {
	logger *log.Logger
	client *http.Client
}

// NewExternal creates an external validator with a bounded-timeout HTTP
// client.
func NewExternal(logger *log.Logger, timeout time.Duration) *External {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &External{
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// Check issues one GET against http://<host>/ and requires a successful
// status. Redirects are followed; anything below 200 or at 400 and above
// fails the run.
func (e *External) Check(ctx context.Context, host string) error {
	url := fmt.Sprintf("http://%s/", host)
	e.logger.Info("probing deployed application", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.NewPipelineError(domain.StageExternalValidate, domain.ErrExternalValidation, err, "build probe request")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.NewPipelineError(domain.StageExternalValidate, domain.ErrExternalValidation, err, "application unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return domain.NewPipelineError(domain.StageExternalValidate, domain.ErrExternalValidation,
			fmt.Errorf("unexpected status %d", resp.StatusCode), "application responded with failure status")
	}

	e.logger.Info("application reachable", "status", resp.StatusCode)
	return nil
}
