// Command shipway deploys a containerized application from a git
// repository onto a remote host over SSH, fronted by an nginx reverse
// proxy, and can tear such a deployment down again. Every run ends in
// exactly one documented exit code.
package main

import (
	"os"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	exitCode := 0
	root := newRootCmd(&exitCode)
	root.SetArgs(args)
	if err := root.Execute(); err != nil && exitCode == 0 {
		// Flag parsing and similar cobra-level failures.
		exitCode = 10
	}
	return exitCode
}
