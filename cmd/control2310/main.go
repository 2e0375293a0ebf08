package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/control2310/internal/app"
)

func main() {
	// SIGHUP is handled separately by the mode signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
