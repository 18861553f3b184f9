package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/artpar/podcompose/internal/core/podman"
)

// Executor runs one podman invocation. args excludes the binary.
type Executor interface {
	Run(ctx context.Context, args []string) error
}

// UpOptions tunes Runner.Up.
type UpOptions struct {
	// NoRecreate skips tearing down existing containers first.
	NoRecreate bool
}

// =============================================================================
// Runner
// =============================================================================

// Runner replays a plan step by step. It never retries; a failed step is
// recorded and the remaining steps still run.
type Runner struct {
	exec   Executor
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(exec Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		exec:   exec,
		logger: logger,
	}
}

// Up tears down leftovers of a previous run, then creates the pods and
// launches the containers in plan order.
func (r *Runner) Up(ctx context.Context, plan *Plan, opts UpOptions) error {
	logger := r.logger.With("run_id", plan.RunID, "project", plan.Project)

	if !opts.NoRecreate {
		if err := r.Down(ctx, plan); err != nil {
			logger.Debug("teardown before up incomplete", "error", err)
		}
	}

	var result *multierror.Error
	for _, pod := range plan.Pods {
		if err := r.step(ctx, podman.PodCreateArgs(pod)); err != nil {
			logger.Error("pod create failed", "pod", pod.Name, "error", err)
			result = multierror.Append(result, err)
		}
	}
	for _, c := range plan.Containers {
		if err := r.step(ctx, c.Args); err != nil {
			logger.Error("container start failed", "container", c.Name, "service", c.Service, "error", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Down stops and removes the plan's containers in reverse order, then
// removes its pods.
func (r *Runner) Down(ctx context.Context, plan *Plan) error {
	containers := slices.Clone(plan.Containers)
	slices.Reverse(containers)

	var result *multierror.Error
	for _, c := range containers {
		if err := r.step(ctx, podman.StopArgs(c.Name)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, c := range containers {
		if err := r.step(ctx, podman.RemoveArgs(c.Name)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, pod := range plan.Pods {
		if err := r.step(ctx, podman.PodRemoveArgs(pod)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *Runner) step(ctx context.Context, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.logger.Info("podman", "args", args)
	return r.exec.Run(ctx, args)
}
