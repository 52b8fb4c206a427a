// Package descriptor contains pure functions for recognizing and parsing
// build descriptors: the files that make a workspace deployable. This is
// part of the functional core - no I/O, callers supply file contents.
package descriptor

import (
	"context"
	"errors"
	"fmt"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Recognized Files
// =============================================================================

// DockerfileName is the single-container build definition.
const DockerfileName = "Dockerfile"

// OverridesFileName is the optional in-repo defaults file.
const OverridesFileName = ".shipway.yaml"

// ComposeFileNames are the multi-container composition definitions, in
// lookup order.
var ComposeFileNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrEmptyInput  = errors.New("compose spec is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")
	ErrNoServices  = errors.New("compose spec must define at least one service")
)

// =============================================================================
// Compose Parsing
// =============================================================================

// ValidateCompose parses a compose file and returns its service count.
// The workspace is deployable as a multi-container stack only when the
// file parses and defines at least one service.
func ValidateCompose(content []byte) (int, error) {
	if len(content) == 0 {
		return 0, ErrEmptyInput
	}

	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil || dict == nil {
		return 0, fmt.Errorf("%w", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("shipway-verify", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = true // env interpolation happens on the remote host
		opts.SkipNormalization = true
		opts.SkipExtends = true // never load files outside the workspace
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}

	if len(project.Services) == 0 {
		return 0, ErrNoServices
	}
	return len(project.Services), nil
}

// =============================================================================
// In-Repo Overrides
// =============================================================================

// Overrides are optional defaults a repository may declare about itself.
// They never override the resolved configuration (which is immutable for
// the run); mismatches are surfaced as warnings so the operator can spot
// a stale prompt answer.
type Overrides struct {
	Branch string `yaml:"branch"`
	Port   int    `yaml:"port"`
}

// ParseOverrides parses an OverridesFileName file.
func ParseOverrides(content []byte) (Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(content, &o); err != nil {
		return Overrides{}, fmt.Errorf("parse %s: %w", OverridesFileName, err)
	}
	return o, nil
}
