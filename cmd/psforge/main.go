// Package main is the entry point for the psforge CLI.
//
// psforge deploys a pixel streaming platform on AWS: it builds a machine
// image per service role, converges the platform's CloudFormation stack,
// and brings up the long-lived service instances behind their load
// balancers.
//
// Commands: deploy, image, cleanup, version.
//
// For detailed usage information, run:
//
//	psforge --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/psforge/psforge/cmd/psforge/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A first interrupt cancels the context so deferred teardown can run;
	// a second one kills the process the usual way.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
