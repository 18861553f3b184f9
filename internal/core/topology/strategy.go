// Package topology decides how a project's containers share network
// namespaces. Every strategy is a pure function over the planned containers.
package topology

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/artpar/podcompose/internal/core/deployment"
)

var ErrUnknownStrategy = errors.New("unknown topology strategy")

// Destination addresses used for host aliases.
const (
	Loopback       = "127.0.0.1"
	GatewayAddress = "10.0.2.2"
)

// InfraImage is the image of the namespace anchor container.
const InfraImage = "k8s.gcr.io/pause:3.1"

// Default is the strategy used when none is configured.
const Default = "1podfw"

// Pod is a grouping unit created by a strategy.
type Pod struct {
	Name  string   `yaml:"name" json:"name"`
	Ports []string `yaml:"ports,omitempty" json:"ports,omitempty"`
}

// Strategy rewrites the container list for one network topology. It never
// mutates its input.
type Strategy interface {
	Name() string
	Transform(project string, index *deployment.ServiceIndex, containers []deployment.Container) ([]Pod, []deployment.Container)
}

var strategies = map[string]Strategy{
	"identity":   Identity{},
	"publishall": PublishAll{},
	"hostnet":    HostNet{},
	"cntnet":     ContainerNet{},
	"1pod":       OnePod{},
	"1podfw":     OnePodWithForwarding{},
}

// Lookup returns the strategy registered under name.
func Lookup(name string) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Helpers
// =============================================================================

// adjustHosts appends name:dest host entries for every service, every
// container and every link alias of c.
func adjustHosts(index *deployment.ServiceIndex, c *deployment.Container, dest string) {
	hosts := slices.Clone([]string(c.Spec.ExtraHosts))
	for _, svc := range index.Services() {
		hosts = append(hosts, svc+":"+dest)
		for _, name := range index.Containers(svc) {
			hosts = append(hosts, name+":"+dest)
		}
	}
	for _, link := range c.Spec.Links {
		if _, alias, ok := strings.Cut(link, ":"); ok {
			hosts = append(hosts, strings.TrimSpace(alias)+":"+dest)
		}
	}
	c.Spec.ExtraHosts = hosts
}

// appendUnique appends the items not already present, keeping order.
func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(dst, item) {
			dst = append(dst, item)
		}
	}
	return dst
}
