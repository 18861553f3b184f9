// Package podman builds podman argument vectors from planned containers.
// Apart from volume resolution, which is delegated to a mount.Resolver,
// everything here is pure.
package podman

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mattn/go-shellwords"

	"github.com/artpar/podcompose/internal/core/compose"
	"github.com/artpar/podcompose/internal/core/deployment"
	"github.com/artpar/podcompose/internal/core/mount"
	"github.com/artpar/podcompose/internal/core/topology"
)

// =============================================================================
// Run Arguments
// =============================================================================

// Builder renders `podman run` argument vectors for one project.
type Builder struct {
	resolver *mount.Resolver
	dirname  string
	home     string
}

// NewBuilder creates a Builder. dirname is the compose file's directory and
// home expands ~ in host paths.
func NewBuilder(resolver *mount.Resolver, dirname, home string) *Builder {
	return &Builder{
		resolver: resolver,
		dirname:  dirname,
		home:     home,
	}
}

// RunArgs returns the arguments after the podman binary that launch c.
// Flags follow a fixed order and the image and command always come last.
func (b *Builder) RunArgs(ctx context.Context, c deployment.Container) ([]string, error) {
	field := "services." + c.ServiceName
	spec := c.Spec

	args := []string{"run", "--name=" + c.Name, "-d"}

	if c.Pod != "" {
		args = append(args, "--pod="+c.Pod)
	}
	args = appendEach(args, "--security-opt", spec.SecurityOpt)
	if spec.ReadOnly {
		args = append(args, "--read-only")
	}
	args = appendEach(args, "--label", c.Labels)
	if spec.NetworkMode != "" {
		args = append(args, "--network", spec.NetworkMode)
	}
	args = appendEach(args, "-e", spec.Environment)
	for _, f := range spec.EnvFile {
		args = append(args, "--env-file", mount.HostPath(f, b.dirname, b.home))
	}
	args = appendEach(args, "--tmpfs", spec.Tmpfs)

	for _, entry := range spec.Volumes {
		opt, err := b.mountOption(ctx, c, entry)
		if err != nil {
			return nil, err
		}
		args = append(args, "--mount", opt)
	}

	args = appendEach(args, "--add-host", spec.ExtraHosts)
	args = appendEach(args, "--expose", spec.Expose)
	if c.PublishAll {
		args = append(args, "-P")
	}
	args = appendEach(args, "-p", spec.Ports)

	if spec.User != "" {
		args = append(args, "-u", spec.User)
	}
	if spec.WorkingDir != "" {
		args = append(args, "-w", spec.WorkingDir)
	}
	if spec.Hostname != "" {
		args = append(args, "--hostname", spec.Hostname)
	}
	if spec.ShmSize != "" {
		args = append(args, "--shm-size", spec.ShmSize)
	}
	if spec.StdinOpen {
		args = append(args, "-i")
	}
	if spec.Tty {
		args = append(args, "--tty")
	}

	args = appendEach(args, "--cap-add", spec.CapAdd)
	args = appendEach(args, "--cap-drop", spec.CapDrop)
	args = appendEach(args, "--device", spec.Devices)
	args = appendEach(args, "--dns", spec.DNS)
	if spec.Privileged {
		args = append(args, "--privileged")
	}
	if spec.Init {
		args = append(args, "--init")
	}
	if spec.Restart != "" {
		args = append(args, "--restart", spec.Restart)
	}
	if spec.StopSignal != "" {
		args = append(args, "--stop-signal", spec.StopSignal)
	}
	args = appendEach(args, "--sysctl", spec.Sysctls)
	args = appendEach(args, "--ulimit", spec.Ulimits)
	args = append(args, resourceArgs(spec)...)

	if spec.Entrypoint.IsSet() {
		ep, err := entrypointValue(spec.Entrypoint)
		if err != nil {
			return nil, compose.NewConfigError(field+".entrypoint", err.Error(), compose.ErrInvalidCommand)
		}
		args = append(args, "--entrypoint", ep)
	}

	hc, err := HealthcheckArgs(field+".healthcheck", &spec.Healthcheck)
	if err != nil {
		return nil, err
	}
	args = append(args, hc...)

	args = append(args, c.Image)

	if spec.Command.IsSet() {
		cmd, err := SplitCommand(spec.Command)
		if err != nil {
			return nil, compose.NewConfigError(field+".command", err.Error(), compose.ErrInvalidCommand)
		}
		args = append(args, cmd...)
	}

	return args, nil
}

func (b *Builder) mountOption(ctx context.Context, c deployment.Container, entry mount.Entry) (string, error) {
	d, err := mount.Normalize(entry, b.dirname, b.home)
	if err != nil {
		return "", err
	}
	d = mount.Canonicalize(d, c.ServiceName, c.Name)
	if b.resolver != nil {
		d, err = b.resolver.Resolve(ctx, d)
		if err != nil {
			return "", err
		}
	}
	return mount.Option(d)
}

func appendEach[S ~[]string](args []string, flag string, values S) []string {
	for _, v := range values {
		args = append(args, flag, v)
	}
	return args
}

// entrypointValue serializes a list entrypoint as JSON and passes a string
// entrypoint through unchanged.
func entrypointValue(ep compose.Command) (string, error) {
	if !ep.List {
		return ep.Shell, nil
	}
	out, err := json.Marshal(ep.Args)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SplitCommand returns a command as argv. The string form is split with
// shell quoting rules; variables are not expanded and unquoted shell
// operators are rejected.
func SplitCommand(cmd compose.Command) ([]string, error) {
	if cmd.List {
		return append([]string(nil), cmd.Args...), nil
	}
	p := shellwords.NewParser()
	words, err := p.Parse(cmd.Shell)
	if err != nil {
		return nil, err
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("unquoted shell operator at offset %d in %q", p.Position, cmd.Shell)
	}
	return words, nil
}

// =============================================================================
// Lifecycle Arguments
// =============================================================================

// PodCreateArgs returns the arguments that create pod.
func PodCreateArgs(pod topology.Pod) []string {
	args := []string{"pod", "create", "--name=" + pod.Name, "--share", "cgroup,uts"}
	return appendEach(args, "-p", pod.Ports)
}

// PodRemoveArgs returns the arguments that remove pod.
func PodRemoveArgs(pod topology.Pod) []string {
	return []string{"pod", "rm", pod.Name}
}

// StopArgs returns the arguments that stop a container.
func StopArgs(name string) []string {
	return []string{"stop", "-t=1", name}
}

// RemoveArgs returns the arguments that remove a container.
func RemoveArgs(name string) []string {
	return []string{"rm", name}
}
