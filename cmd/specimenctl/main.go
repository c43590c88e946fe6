// Command specimenctl manages projects and specimens from the command line.
// Configuration comes from the environment, optionally seeded from .env files.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		os.Exit(1)
	}
}
