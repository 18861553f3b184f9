package deployment

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

var (
	ErrDependencyCycle = errors.New("circular dependency detected")
	ErrUnknownOrdering = errors.New("unknown ordering")
)

// Ordering selects how containers are ordered for launch.
type Ordering string

const (
	// OrderingLegacy sorts by the size of the dependency closure.
	OrderingLegacy Ordering = "legacy"
	// OrderingTopological runs Kahn's algorithm, breaking ties in legacy order.
	OrderingTopological Ordering = "topological"
)

// =============================================================================
// Dependency Resolution
// =============================================================================

// DirectDeps returns the services a spec refers to through links (the part
// before ':') and depends_on, without duplicates, in declaration order.
func DirectDeps(c Container) []string {
	var deps []string
	for _, link := range c.Spec.Links {
		name, _, _ := strings.Cut(link, ":")
		if !slices.Contains(deps, name) {
			deps = append(deps, name)
		}
	}
	for _, name := range c.Spec.DependsOn {
		if !slices.Contains(deps, name) {
			deps = append(deps, name)
		}
	}
	return deps
}

// ResolveDependencies fills in Deps for every container and returns the new
// list in the same order.
//
// Every service starts with its direct dependencies. Services are then
// grown in document order, and each one folds in the sets of the services
// it depends on. Those sets are shared, so a service processed later sees
// what earlier services already added. A dependency is not expanded when
// its current set already names the originating service, nor when it is on
// the current path, so every input terminates. With strict set, any cycle,
// including a service depending on itself, is rejected with
// ErrDependencyCycle instead.
func ResolveDependencies(containers []Container, index *ServiceIndex, strict bool) ([]Container, error) {
	var services []string
	direct := make(map[string][]string)
	for _, c := range containers {
		if _, seen := direct[c.ServiceName]; !seen {
			direct[c.ServiceName] = DirectDeps(c)
			services = append(services, c.ServiceName)
		}
	}

	if strict {
		if err := detectCycles(index.Services(), direct); err != nil {
			return nil, err
		}
	}

	sets := make(map[string]map[string]bool, len(direct))
	for svc, deps := range direct {
		set := make(map[string]bool, len(deps))
		for _, dep := range deps {
			set[dep] = true
		}
		sets[svc] = set
	}
	for _, svc := range services {
		grow(svc, svc, sets, map[string]bool{})
	}

	out := CloneAll(containers)
	for i := range out {
		c := &out[i]
		c.Deps = nil
		for _, svc := range sortedKeys(sets[c.ServiceName]) {
			if svc == c.ServiceName {
				continue
			}
			name, ok := index.First(svc)
			if !ok {
				name = svc
			}
			c.AddDep(name)
		}
	}
	return out, nil
}

// grow folds the sets of svc's dependencies into sets[svc], in place.
// Dependencies are visited in name order over a snapshot of the set.
func grow(svc, start string, sets map[string]map[string]bool, path map[string]bool) {
	path[svc] = true
	defer delete(path, svc)

	for _, dep := range sortedKeys(sets[svc]) {
		if dep == svc || path[dep] {
			continue
		}
		depSet, known := sets[dep]
		if !known || depSet[start] {
			continue
		}
		grow(dep, start, sets, path)
		for d := range sets[dep] {
			sets[svc][d] = true
		}
	}
}

// detectCycles walks the service graph depth first and reports the first
// cycle found as a path.
func detectCycles(services []string, direct map[string][]string) error {
	visited := make(map[string]bool)
	var stack []string

	var visit func(svc string) error
	visit = func(svc string) error {
		visited[svc] = true
		stack = append(stack, svc)
		defer func() { stack = stack[:len(stack)-1] }()

		for _, dep := range direct[svc] {
			if i := slices.Index(stack, dep); i >= 0 {
				cycle := append(slices.Clone(stack[i:]), dep)
				return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(cycle, " -> "))
			}
			if visited[dep] {
				continue
			}
			if _, known := direct[dep]; !known {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, svc := range services {
		if visited[svc] {
			continue
		}
		if err := visit(svc); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Ordering
// =============================================================================

// Order returns the containers in launch order.
func Order(containers []Container, ordering Ordering) ([]Container, error) {
	switch ordering {
	case OrderingLegacy, "":
		return legacyOrder(containers), nil
	case OrderingTopological:
		return topologicalOrder(containers), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOrdering, ordering)
}

// legacyOrder stably sorts by the number of dependencies, fewest first.
func legacyOrder(containers []Container) []Container {
	out := slices.Clone(containers)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Deps) < len(out[j].Deps)
	})
	return out
}

// topologicalOrder sorts containers using Kahn's algorithm. Ready containers
// are taken in legacy order. If a cycle remains, the remaining containers are
// appended in legacy order.
func topologicalOrder(containers []Container) []Container {
	legacy := legacyOrder(containers)
	if len(legacy) == 0 {
		return legacy
	}

	position := make(map[string]int, len(legacy))
	for i, c := range legacy {
		position[c.Name] = i
	}

	inDegree := make([]int, len(legacy))
	dependents := make([][]int, len(legacy))
	for i, c := range legacy {
		for _, dep := range c.Deps {
			j, ok := position[dep]
			if !ok {
				continue
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	result := make([]Container, 0, len(legacy))
	placed := make([]bool, len(legacy))
	for len(ready) > 0 {
		slices.Sort(ready)
		i := ready[0]
		ready = ready[1:]

		result = append(result, legacy[i])
		placed[i] = true

		for _, j := range dependents[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	for i, c := range legacy {
		if !placed[i] {
			result = append(result, c)
		}
	}
	return result
}
