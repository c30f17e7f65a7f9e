// Package main is the entry point for the ethdeploy CLI.
package main

import (
	"os"

	"github.com/mrz1836/ethdeploy/internal/cli"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
//
//nolint:gochecknoglobals // ldflags injection targets
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
