// Package podman runs the podman command line tool.
package podman

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// ExecError is a failed podman invocation.
type ExecError struct {
	Args     []string
	ExitCode int // -1 when the process did not run to completion
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("podman %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CLI
// =============================================================================

// CLI runs podman as a child process.
type CLI struct {
	path       string
	globalArgs []string
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
}

// NewCLI creates a CLI. globalArgs are inserted before every subcommand.
func NewCLI(path string, globalArgs []string, logger *slog.Logger) *CLI {
	if path == "" {
		path = "podman"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{
		path:       path,
		globalArgs: globalArgs,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		logger:     logger,
	}
}

// SetOutput redirects the output of Run.
func (c *CLI) SetOutput(stdout, stderr io.Writer) {
	c.stdout = stdout
	c.stderr = stderr
}

// Run executes podman with args, streaming its output.
func (c *CLI) Run(ctx context.Context, args []string) error {
	return c.exec(ctx, args, c.stdout)
}

// Output executes podman with args and returns its trimmed stdout.
func (c *CLI) Output(ctx context.Context, args []string) (string, error) {
	var stdout bytes.Buffer
	if err := c.exec(ctx, args, &stdout); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *CLI) exec(ctx context.Context, args []string, stdout io.Writer) error {
	fullArgs := append(append([]string{}, c.globalArgs...), args...)

	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.path, fullArgs...)
	command.Stdout = stdout
	command.Stderr = io.MultiWriter(&stderr, c.stderr)

	c.logger.Debug("exec", "path", c.path, "args", fullArgs)
	if err := command.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExecError{
			Args:     args,
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return nil
}

// =============================================================================
// Volume Store
// =============================================================================

// InspectVolume returns the host mountpoint of a volume.
func (c *CLI) InspectVolume(ctx context.Context, name string) (string, error) {
	out, err := c.Output(ctx, []string{"volume", "inspect", "--format", "{{.Mountpoint}}", name})
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("volume %s has no mountpoint", name)
	}
	return out, nil
}

// CreateVolume creates a volume with the given labels.
func (c *CLI) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	args := []string{"volume", "create"}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+labels[k])
	}
	args = append(args, name)

	return c.exec(ctx, args, io.Discard)
}
