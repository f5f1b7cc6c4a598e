// Package main is the entry point for the stagehand CLI.
//
// stagehand brings up the nodes of a test configuration, either as
// Hetzner Cloud servers provisioned over SSH or as services of a docker
// stack, and records how every node can be reached.
//
// For detailed usage information, run:
//
//	stagehand --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/stagehand/cmd/stagehand/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
