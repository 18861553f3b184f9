package deployment

import (
	"slices"

	"github.com/artpar/podcompose/internal/core/compose"
	"github.com/artpar/podcompose/internal/core/mount"
)

// =============================================================================
// Container Descriptor
// =============================================================================

// Container is one launchable unit derived from a service and a replica
// number. Stages return new slices of Containers instead of sharing them.
type Container struct {
	Name        string
	ServiceName string
	ProjectName string
	Num         int
	Image       string
	Labels      []string

	// Deps is the sorted dependency closure, as container names.
	Deps []string

	// Pod is the grouping unit the container joins, if any.
	Pod string

	// PublishAll publishes every exposed port.
	PublishAll bool

	// Spec carries the passthrough service options.
	Spec compose.ServiceSpec
}

// Clone returns a deep copy of c.
func (c Container) Clone() Container {
	out := c
	out.Labels = slices.Clone(c.Labels)
	out.Deps = slices.Clone(c.Deps)
	out.Spec = c.Spec.Clone()
	return out
}

// AddDep adds name to the dependency closure, keeping it sorted.
func (c *Container) AddDep(name string) {
	if name == c.Name {
		return
	}
	i, found := slices.BinarySearch(c.Deps, name)
	if found {
		return
	}
	c.Deps = slices.Insert(c.Deps, i, name)
}

// CloneAll deep-copies a container list.
func CloneAll(containers []Container) []Container {
	out := make([]Container, len(containers))
	for i, c := range containers {
		out[i] = c.Clone()
	}
	return out
}

// =============================================================================
// Service Index
// =============================================================================

// ServiceIndex maps each service to the container names it expanded to.
// Services keep document order.
type ServiceIndex struct {
	order []string
	names map[string][]string
}

// NewServiceIndex creates an empty index.
func NewServiceIndex() *ServiceIndex {
	return &ServiceIndex{names: make(map[string][]string)}
}

// Add records that container belongs to service.
func (x *ServiceIndex) Add(service, container string) {
	if _, ok := x.names[service]; !ok {
		x.order = append(x.order, service)
	}
	x.names[service] = append(x.names[service], container)
}

// Services returns service names in document order.
func (x *ServiceIndex) Services() []string {
	return slices.Clone(x.order)
}

// Containers returns the container names of service.
func (x *ServiceIndex) Containers(service string) []string {
	return slices.Clone(x.names[service])
}

// First returns the first container of service.
func (x *ServiceIndex) First(service string) (string, bool) {
	names, ok := x.names[service]
	if !ok || len(names) == 0 {
		return "", false
	}
	return names[0], true
}


// =============================================================================
// Labels
// =============================================================================

// Label keys put on every container.
const (
	LabelConfigHash      = "io.podman.compose.config-hash"
	LabelProject         = mount.LabelProject
	LabelVersion         = "io.podman.compose.version"
	LabelContainerNumber = "com.docker.compose.container-number"
	LabelService         = "com.docker.compose.service"
)
