package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"keepalive/internal/client/cli"
	"keepalive/internal/shared/tuning"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	tuning.Apply(tuning.DefaultConfig())
	cli.SetVersion(Version, GitCommit, BuildTime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
