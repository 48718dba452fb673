package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"runstream/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.New(version).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
