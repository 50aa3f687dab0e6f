// Package main is the entry point for the tag2changelog CLI application.
// tag2changelog writes a Debian changelog from the release tags of a git
// branch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gitsage/tag2changelog/internal/cmd"
	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// Version information - set via ldflags during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.NewRootCmd(version, commit, date)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		apperrors.PrintFatal(os.Stderr, err)
		stop()
		os.Exit(apperrors.GetExitCode(err))
	}
}
