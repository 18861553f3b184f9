// Package engine wires the translation pipeline together and replays the
// resulting plan against an executor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/artpar/podcompose/internal/core/compose"
	"github.com/artpar/podcompose/internal/core/deployment"
	"github.com/artpar/podcompose/internal/core/mount"
	"github.com/artpar/podcompose/internal/core/podman"
	"github.com/artpar/podcompose/internal/core/topology"
)

// ErrNotImplemented is returned for commands the tool accepts but does not
// carry out.
var ErrNotImplemented = errors.New("command not implemented")

// Input is everything one planning pass needs.
type Input struct {
	Files     []compose.File // merged in order
	Dir       string         // directory of the first compose file
	Home      string
	Project   string // resolved from the document when empty
	Version   string
	Providers []compose.Provider

	// ReadFile loads extends.file targets.
	ReadFile func(path string) ([]byte, error)

	Strategy           string
	Ordering           deployment.Ordering
	StrictDependencies bool

	// SkipVolumes leaves named volumes as volume mounts instead of
	// resolving them to host directories through the volume store.
	SkipVolumes bool
}

// Plan is the full, ordered set of steps for a project.
type Plan struct {
	RunID      string             `yaml:"-" json:"-"`
	Project    string             `yaml:"project" json:"project"`
	Strategy   string             `yaml:"strategy" json:"strategy"`
	Pods       []topology.Pod     `yaml:"pods,omitempty" json:"pods,omitempty"`
	Containers []PlannedContainer `yaml:"containers" json:"containers"`
}

// PlannedContainer is a container descriptor with its launch arguments.
type PlannedContainer struct {
	Name      string               `yaml:"name" json:"name"`
	Service   string               `yaml:"service" json:"service"`
	Deps      []string             `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Args      []string             `yaml:"args" json:"args"`
	Container deployment.Container `yaml:"-" json:"-"`
}

// =============================================================================
// Planner
// =============================================================================

// Planner runs the translation pipeline.
type Planner struct {
	store  mount.VolumeStore
	logger *slog.Logger
}

// NewPlanner creates a Planner. store may be nil, in which case volumes are
// never resolved.
func NewPlanner(store mount.VolumeStore, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		store:  store,
		logger: logger,
	}
}

// Plan parses the document and produces the plan. Nothing is returned
// unless every container's arguments could be built.
func (p *Planner) Plan(ctx context.Context, in Input) (*Plan, error) {
	runID := uuid.NewString()

	strategy, err := topology.Lookup(strategyName(in.Strategy))
	if err != nil {
		return nil, err
	}

	doc, in, err := parse(in)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("run_id", runID, "project", in.Project)

	containers, index, err := p.order(doc, in)
	if err != nil {
		return nil, err
	}

	pods, containers := strategy.Transform(in.Project, index, containers)
	logger.Debug("topology applied", "strategy", strategy.Name(), "pods", len(pods), "containers", len(containers))

	var store mount.VolumeStore
	if !in.SkipVolumes {
		store = p.store
	}
	builder := podman.NewBuilder(mount.NewResolver(store, in.Project, doc.DeclaredVolumes()), in.Dir, in.Home)

	plan := &Plan{
		RunID:      runID,
		Project:    in.Project,
		Strategy:   strategy.Name(),
		Pods:       pods,
		Containers: make([]PlannedContainer, 0, len(containers)),
	}
	for _, c := range containers {
		args, err := builder.RunArgs(ctx, c)
		if err != nil {
			return nil, err
		}
		logger.Debug("container planned", "container", c.Name, "service", c.ServiceName, "args", args)
		plan.Containers = append(plan.Containers, PlannedContainer{
			Name:      c.Name,
			Service:   c.ServiceName,
			Deps:      c.Deps,
			Args:      args,
			Container: c,
		})
	}

	logger.Info("plan ready", "strategy", plan.Strategy, "containers", len(plan.Containers))
	return plan, nil
}

// Validate checks a document without touching the engine and reports every
// problem found instead of stopping at the first.
func (p *Planner) Validate(ctx context.Context, in Input) error {
	if _, err := topology.Lookup(strategyName(in.Strategy)); err != nil {
		return err
	}

	doc, in, err := parse(in)
	if err != nil {
		return err
	}

	var result *multierror.Error
	if err := compose.Validate(doc); err != nil {
		result = multierror.Append(result, err)
	}

	containers, _, err := p.order(doc, in)
	if err != nil {
		result = multierror.Append(result, err)
		return result.ErrorOrNil()
	}

	builder := podman.NewBuilder(mount.NewResolver(nil, in.Project, doc.DeclaredVolumes()), in.Dir, in.Home)
	seen := make(map[string]bool)
	for _, c := range containers {
		if seen[c.ServiceName] {
			continue
		}
		seen[c.ServiceName] = true
		if _, err := builder.RunArgs(ctx, c); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// parse reads the input files and fills in the project name.
func parse(in Input) (*compose.Document, Input, error) {
	doc, err := compose.ParseFiles(in.Files, compose.Options{
		Substituter: compose.NewSubstituter(in.Providers...),
		Dir:         in.Dir,
		ReadFile:    in.ReadFile,
	})
	if err != nil {
		return nil, in, err
	}
	if in.Project, err = compose.ProjectName(in.Project, doc, in.Providers, in.Dir); err != nil {
		return nil, in, err
	}
	return doc, in, nil
}

// order expands the document's services and sorts them by dependency.
func (p *Planner) order(doc *compose.Document, in Input) ([]deployment.Container, *deployment.ServiceIndex, error) {
	containers, index := deployment.Expand(doc.Services, deployment.ExpandOptions{
		Project:    in.Project,
		Version:    in.Version,
		ConfigHash: doc.Hash,
	})

	containers, err := deployment.ResolveDependencies(containers, index, in.StrictDependencies)
	if err != nil {
		return nil, nil, err
	}

	ordering := in.Ordering
	if ordering == "" {
		ordering = deployment.OrderingLegacy
	}
	containers, err = deployment.Order(containers, ordering)
	if err != nil {
		return nil, nil, fmt.Errorf("order containers: %w", err)
	}
	return containers, index, nil
}

func strategyName(name string) string {
	if name == "" {
		return topology.Default
	}
	return name
}
