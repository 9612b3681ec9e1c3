// Package main provides the meetnotes CLI process entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aishanisingh/ai-meeting-notes/internal/app"
)

// main wires process signal handling to the application runner. For the
// record command, an interrupt cancels the run context, which the session
// controller treats as a stop request.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(exitCode)
}
