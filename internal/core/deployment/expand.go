package deployment

import (
	"strconv"

	"github.com/artpar/podcompose/internal/core/compose"
)

// =============================================================================
// Service Expansion
// =============================================================================

// ExpandOptions carries the project-wide values stamped on every container.
type ExpandOptions struct {
	Project    string
	Version    string
	ConfigHash string
}

// Expand produces one Container per replica of every service, in document
// order, plus the index of container names per service.
//
// Replica 1 uses container_name when the service sets one; every other
// replica is named {project}_{service}_{num}.
func Expand(services []compose.Service, opts ExpandOptions) ([]Container, *ServiceIndex) {
	index := NewServiceIndex()
	var containers []Container

	for _, svc := range services {
		image := svc.Spec.Image
		if image == "" {
			image = ImageName(opts.Project, svc.Name)
		}

		for num := 1; num <= svc.Spec.Deploy.Replicas.Count(); num++ {
			name := ContainerName(opts.Project, svc.Name, num)
			if num == 1 && svc.Spec.ContainerName != "" {
				name = svc.Spec.ContainerName
			}

			spec := svc.Spec.Clone()
			containers = append(containers, Container{
				Name:        name,
				ServiceName: svc.Name,
				ProjectName: opts.Project,
				Num:         num,
				Image:       image,
				Labels:      buildLabels(spec.Labels, svc.Name, num, opts),
				Spec:        spec,
			})
			index.Add(svc.Name, name)
		}
	}

	return containers, index
}

// buildLabels appends the provenance labels to the service's own labels.
func buildLabels(own compose.KeyValues, service string, num int, opts ExpandOptions) []string {
	labels := make([]string, 0, len(own)+5)
	labels = append(labels, own...)
	labels = append(labels,
		LabelConfigHash+"="+opts.ConfigHash,
		LabelProject+"="+opts.Project,
		LabelVersion+"="+opts.Version,
		LabelContainerNumber+"="+strconv.Itoa(num),
		LabelService+"="+service,
	)
	return labels
}
