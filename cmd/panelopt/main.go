package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/panelopt/panelopt/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.ExecuteContext(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
