// Package logging constructs the run-scoped log sink: one append-only,
// timestamped log file per run, mirrored to the terminal. Local entries
// and echoed remote entries flow through the same sink, tagged by origin.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/shipway/internal/core/remotescript"
	"github.com/charmbracelet/log"
)

// =============================================================================
// Run Log
// =============================================================================

// RunLog owns the per-run log file and the logger writing to it. Its
// lifecycle is scoped to the run: opened before the first stage, closed
// by the finalize step.
type RunLog struct {
	Logger *log.Logger
	Path   string

	file *os.File
}

// Open creates the timestamped run log under dir and returns the logger
// writing to both the file and mirror (normally stderr).
func Open(dir string, runID string, mirror io.Writer) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("shipway-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}

	w := io.Writer(file)
	if mirror != nil {
		w = io.MultiWriter(mirror, file)
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}).With("run", runID)

	return &RunLog{Logger: logger, Path: path, file: file}, nil
}

// Close flushes and closes the log file.
func (r *RunLog) Close() error {
	return r.file.Close()
}

// RemoteEcho returns the line callback used while the remote unit runs.
// Lines emitted by the remote unit's own log helper are surfaced at info
// level tagged origin=remote; raw command output is kept at debug level
// so package-manager noise does not drown the run log.
func (r *RunLog) RemoteEcho() func(string) {
	remote := r.Logger.With("origin", "remote")
	return func(line string) {
		if remotescript.IsRemoteLogLine(line) {
			remote.Info(line)
			return
		}
		remote.Debug(line)
	}
}
