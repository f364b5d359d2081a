// Package main is the entry point for lurchfeed.
package main

import (
	"fmt"
	"os"

	"github.com/zjrosen/lurchfeed/cmd"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	versionString := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	cmd.SetVersion(versionString)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(cmd.ExitCode())
}
