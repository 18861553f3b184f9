package podman

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// DryRun prints every invocation as a shell command line instead of
// running it.
type DryRun struct {
	path string
	out  io.Writer
}

// NewDryRun creates a DryRun that writes to out.
func NewDryRun(path string, out io.Writer) *DryRun {
	if path == "" {
		path = "podman"
	}
	return &DryRun{path: path, out: out}
}

// Run prints the command line for args.
func (d *DryRun) Run(ctx context.Context, args []string) error {
	line, err := CommandLine(d.path, args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(d.out, line)
	return err
}

// CommandLine renders path and args as one POSIX shell command line.
func CommandLine(path string, args []string) (string, error) {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{path}, args...) {
		q, err := syntax.Quote(w, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", w, err)
		}
		words = append(words, q)
	}
	return strings.Join(words, " "), nil
}
