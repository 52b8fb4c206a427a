package remotescript

import (
	"fmt"
	"strings"
)

// =============================================================================
// Script Composition
// =============================================================================

// logTag prefixes every remote-originated log line so the controller can
// echo them through the shared log sink tagged by origin.
const logTag = "[shipway-remote]"

// Render composes the ordered steps into the single shell script that is
// transmitted over the command channel. The prelude defines the shared
// log/fail helpers: every line the unit emits goes both to stdout (echoed
// back to the controller) and to the per-project remote log file.
func Render(project, remoteLog string, steps []Step) string {
	var b strings.Builder

	b.WriteString("#!/bin/sh\n")
	b.WriteString("set -u\n\n")
	fmt.Fprintf(&b, "SHIPWAY_LOG=%q\n", remoteLog)
	fmt.Fprintf(&b, `log() {
  line="%s $(date '+%%Y-%%m-%%dT%%H:%%M:%%S') %s: $1"
  echo "$line"
  echo "$line" | sudo tee -a "$SHIPWAY_LOG" >/dev/null 2>&1 || true
}
fail() {
  code="$1"; shift
  log "FAIL($code): $*"
  exit "$code"
}
`, logTag, project)

	for _, step := range steps {
		b.WriteString("\n")
		fmt.Fprintf(&b, "# ---- step: %s ----\n", step.Name)
		fmt.Fprintf(&b, "log \"step: %s\"\n", step.Name)
		b.WriteString(step.Script)
		b.WriteString("\n")
	}

	b.WriteString("\nlog \"remote unit complete\"\nexit 0\n")
	return b.String()
}

// IsRemoteLogLine reports whether an output line originated from the
// remote unit's log helper rather than from a raw command.
func IsRemoteLogLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), logTag)
}
