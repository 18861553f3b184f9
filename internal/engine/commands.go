package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler carries out one top-level command.
type Handler func(ctx context.Context, deps *Deps, in Input) error

// Deps holds dependencies available to all command handlers.
type Deps struct {
	Planner *Planner
	Runner  *Runner
	Logger  *slog.Logger
	// Output receives the result of commands that print one.
	Output func(plan *Plan) error
	// Up tunes the up command.
	Up UpOptions
}

// Bus dispatches top-level commands to their handlers.
type Bus struct {
	handlers map[string]Handler
	deps     *Deps
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewBus creates a command bus with the up, down and config handlers
// registered.
func NewBus(deps *Deps) *Bus {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	b := &Bus{
		handlers: make(map[string]Handler),
		deps:     deps,
		logger:   deps.Logger,
	}
	b.Register("up", upHandler)
	b.Register("down", downHandler)
	b.Register("config", configHandler)
	return b
}

// Register registers a handler for a command name.
func (b *Bus) Register(command string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[command] = handler
}

// Dispatch runs the handler registered for command. Commands without a
// handler fail with ErrNotImplemented.
func (b *Bus) Dispatch(ctx context.Context, command string, in Input) error {
	b.mu.RLock()
	handler, ok := b.handlers[command]
	b.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s: %w", command, ErrNotImplemented)
	}

	b.logger.Debug("dispatching command", "command", command, "project", in.Project)
	if err := handler(ctx, b.deps, in); err != nil {
		b.logger.Debug("command failed", "command", command, "error", err)
		return fmt.Errorf("command %s: %w", command, err)
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func upHandler(ctx context.Context, deps *Deps, in Input) error {
	plan, err := deps.Planner.Plan(ctx, in)
	if err != nil {
		return err
	}
	return deps.Runner.Up(ctx, plan, deps.Up)
}

func downHandler(ctx context.Context, deps *Deps, in Input) error {
	in.SkipVolumes = true
	plan, err := deps.Planner.Plan(ctx, in)
	if err != nil {
		return err
	}
	return deps.Runner.Down(ctx, plan)
}

func configHandler(ctx context.Context, deps *Deps, in Input) error {
	in.SkipVolumes = true
	plan, err := deps.Planner.Plan(ctx, in)
	if err != nil {
		return err
	}
	if deps.Output == nil {
		return nil
	}
	return deps.Output(plan)
}
