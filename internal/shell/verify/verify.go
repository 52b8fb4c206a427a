// Package verify implements the build-descriptor verification stage: a
// read-only check that the synced workspace actually defines a deployable
// artifact.
package verify

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/shipway/internal/core/descriptor"
	"github.com/artpar/shipway/internal/core/domain"
)

// =============================================================================
// Workspace Verification
// =============================================================================

// Result describes what the workspace can be deployed as.
type Result struct {
	// UseCompose is true when a composition definition was found; it
	// takes precedence over a single-container Dockerfile.
	UseCompose  bool
	ComposeFile string
	Services    int

	// Overrides holds the optional in-repo defaults, when present.
	Overrides    descriptor.Overrides
	HasOverrides bool
}

// Workspace checks the workspace for a recognized build definition: a
// multi-container composition file or a single-container Dockerfile. The
// check has no side effects; it reads, never writes.
func Workspace(dir string) (Result, error) {
	for _, name := range descriptor.ComposeFileNames {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		services, err := descriptor.ValidateCompose(content)
		if err != nil {
			return Result{}, domain.NewPipelineError(domain.StageFileVerification, domain.ErrMissingDescriptor,
				fmt.Errorf("%s: %w", name, err), "composition definition is not deployable")
		}
		res := Result{UseCompose: true, ComposeFile: name, Services: services}
		loadOverrides(dir, &res)
		return res, nil
	}

	if _, err := os.Stat(filepath.Join(dir, descriptor.DockerfileName)); err == nil {
		res := Result{}
		loadOverrides(dir, &res)
		return res, nil
	}

	return Result{}, domain.NewPipelineError(domain.StageFileVerification, domain.ErrMissingDescriptor, nil,
		fmt.Sprintf("workspace contains neither %s nor a composition file", descriptor.DockerfileName))
}

// loadOverrides reads the optional in-repo defaults file. A malformed
// file is ignored; overrides only ever produce warnings.
func loadOverrides(dir string, res *Result) {
	content, err := os.ReadFile(filepath.Join(dir, descriptor.OverridesFileName))
	if err != nil {
		return
	}
	o, err := descriptor.ParseOverrides(content)
	if err != nil {
		return
	}
	res.Overrides = o
	res.HasOverrides = true
}
