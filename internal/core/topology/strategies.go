package topology

import (
	"github.com/artpar/podcompose/internal/core/compose"
	"github.com/artpar/podcompose/internal/core/deployment"
)

// =============================================================================
// identity
// =============================================================================

// Identity leaves the topology alone.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Transform(project string, index *deployment.ServiceIndex, containers []deployment.Container) ([]Pod, []deployment.Container) {
	return nil, deployment.CloneAll(containers)
}

// =============================================================================
// publishall
// =============================================================================

// PublishAll publishes every exposed port and points aliases at the
// engine's gateway.
type PublishAll struct{}

func (PublishAll) Name() string { return "publishall" }

func (PublishAll) Transform(project string, index *deployment.ServiceIndex, containers []deployment.Container) ([]Pod, []deployment.Container) {
	out := deployment.CloneAll(containers)
	for i := range out {
		out[i].PublishAll = true
		adjustHosts(index, &out[i], GatewayAddress)
	}
	return nil, out
}

// =============================================================================
// hostnet
// =============================================================================

// HostNet runs every container in the host's network namespace.
type HostNet struct{}

func (HostNet) Name() string { return "hostnet" }

func (HostNet) Transform(project string, index *deployment.ServiceIndex, containers []deployment.Container) ([]Pod, []deployment.Container) {
	out := deployment.CloneAll(containers)
	for i := range out {
		out[i].Spec.NetworkMode = "host"
		adjustHosts(index, &out[i], Loopback)
	}
	return nil, out
}

// =============================================================================
// cntnet
// =============================================================================

// ContainerNet makes every container join the network namespace of one
// infra container, which owns all published ports and host entries.
type ContainerNet struct{}

func (ContainerNet) Name() string { return "cntnet" }

func (ContainerNet) Transform(project string, index *deployment.ServiceIndex, containers []deployment.Container) ([]Pod, []deployment.Container) {
	infraName := deployment.InfraName(project)
	infra := deployment.Container{
		Name:        infraName,
		ServiceName: "infra",
		ProjectName: project,
		Num:         1,
		Image:       InfraImage,
		Labels:      []string{deployment.LabelProject + "=" + project},
	}

	out := make([]deployment.Container, 0, len(containers)+1)
	for _, c := range deployment.CloneAll(containers) {
		c.Spec.NetworkMode = "container:" + infraName
		c.AddDep(infraName)
		c.Spec.Hostname = ""

		adjustHosts(index, &c, Loopback)
		infra.Spec.ExtraHosts = compose.HostList(appendUnique(infra.Spec.ExtraHosts, c.Spec.ExtraHosts...))
		c.Spec.ExtraHosts = nil

		infra.Spec.Ports = compose.PortList(appendUnique(infra.Spec.Ports, c.Spec.Ports...))
		c.Spec.Ports = nil

		out = append(out, c)
	}

	return nil, append([]deployment.Container{infra}, out...)
}

// =============================================================================
// 1pod / 1podfw
// =============================================================================

// OnePod puts every container into a single pod named after the project.
type OnePod struct{}

func (OnePod) Name() string { return "1pod" }

func (OnePod) Transform(project string, index *deployment.ServiceIndex, containers []deployment.Container) ([]Pod, []deployment.Container) {
	out := deployment.CloneAll(containers)
	for i := range out {
		out[i].Pod = project
		adjustHosts(index, &out[i], Loopback)
	}
	return []Pod{{Name: project}}, out
}

// OnePodWithForwarding is OnePod with all published ports moved to the pod.
type OnePodWithForwarding struct{}

func (OnePodWithForwarding) Name() string { return "1podfw" }

func (OnePodWithForwarding) Transform(project string, index *deployment.ServiceIndex, containers []deployment.Container) ([]Pod, []deployment.Container) {
	pods, out := OnePod{}.Transform(project, index, containers)
	pod := &pods[0]
	for i := range out {
		pod.Ports = appendUnique(pod.Ports, out[i].Spec.Ports...)
		out[i].Spec.Ports = nil
	}
	return pods, out
}
