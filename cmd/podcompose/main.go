package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/podcompose/internal/core/compose"
	"github.com/artpar/podcompose/internal/core/deployment"
	"github.com/artpar/podcompose/internal/core/mount"
	"github.com/artpar/podcompose/internal/core/topology"
	"github.com/artpar/podcompose/internal/engine"
	"github.com/artpar/podcompose/internal/shell/environ"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitResolutionError = 2
	ExitExecutionError  = 3
	ExitNotImplemented  = 4
)

// CommandError is a failure with a fixed exit code.
type CommandError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cErr *CommandError
	if errors.As(err, &cErr) {
		return cErr.ExitCode
	}

	switch {
	case errors.Is(err, engine.ErrNotImplemented):
		return ExitNotImplemented
	case errors.Is(err, mount.ErrVolumeResolution):
		return ExitResolutionError
	case compose.IsConfigError(err),
		mount.IsConfigError(err),
		errors.Is(err, deployment.ErrDependencyCycle),
		errors.Is(err, deployment.ErrUnknownOrdering),
		errors.Is(err, topology.ErrUnknownStrategy),
		errors.Is(err, environ.ErrComposeFileNotFound),
		errors.Is(err, environ.ErrEnvFileNotFound),
		errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	}
	return ExitExecutionError
}
