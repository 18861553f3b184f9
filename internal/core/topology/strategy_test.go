package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/podcompose/internal/core/compose"
	"github.com/artpar/podcompose/internal/core/deployment"
)

// fixture returns two services, web (ports 80, aliased link to api) and
// api (port 8080, explicit hostname).
func fixture() (*deployment.ServiceIndex, []deployment.Container) {
	services := []compose.Service{
		{Name: "web", Spec: compose.ServiceSpec{
			Image:      "nginx",
			Ports:      compose.PortList{"80:80"},
			Links:      compose.StringList{"api:backend"},
			ExtraHosts: compose.HostList{"mirror:10.1.1.1"},
		}},
		{Name: "api", Spec: compose.ServiceSpec{
			Image:    "api",
			Ports:    compose.PortList{"8080:8080"},
			Hostname: "api.local",
		}},
	}
	containers, index := deployment.Expand(services, deployment.ExpandOptions{Project: "shop"})
	return index, containers
}

// =============================================================================
// Lookup Tests
// =============================================================================

func TestLookup_AllStrategies(t *testing.T) {
	for _, name := range []string{"identity", "publishall", "hostnet", "cntnet", "1pod", "1podfw"} {
		s, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
	}
	assert.Len(t, Names(), 6)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("mesh")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Contains(t, err.Error(), "1podfw")
}

func TestLookup_Default(t *testing.T) {
	s, err := Lookup(Default)
	require.NoError(t, err)
	assert.IsType(t, OnePodWithForwarding{}, s)
}

// =============================================================================
// Strategy Tests
// =============================================================================

func TestIdentity_Copies(t *testing.T) {
	index, containers := fixture()

	pods, out := Identity{}.Transform("shop", index, containers)

	assert.Empty(t, pods)
	assert.Equal(t, containers, out)
	out[0].Spec.Ports[0] = "1:1"
	assert.Equal(t, "80:80", containers[0].Spec.Ports[0])
}

func TestPublishAll_GatewayAliases(t *testing.T) {
	index, containers := fixture()

	pods, out := PublishAll{}.Transform("shop", index, containers)

	assert.Empty(t, pods)
	assert.True(t, out[0].PublishAll)
	assert.Equal(t, []string{
		"mirror:10.1.1.1",
		"web:10.0.2.2",
		"shop_web_1:10.0.2.2",
		"api:10.0.2.2",
		"shop_api_1:10.0.2.2",
		"backend:10.0.2.2",
	}, []string(out[0].Spec.ExtraHosts))
	assert.Equal(t, compose.PortList{"80:80"}, out[0].Spec.Ports)
}

func TestHostNet_HostNetwork(t *testing.T) {
	index, containers := fixture()

	_, out := HostNet{}.Transform("shop", index, containers)

	for _, c := range out {
		assert.Equal(t, "host", c.Spec.NetworkMode)
		assert.Contains(t, []string(c.Spec.ExtraHosts), "web:127.0.0.1")
	}
}

func TestContainerNet_Infra(t *testing.T) {
	index, containers := fixture()

	pods, out := ContainerNet{}.Transform("shop", index, containers)

	assert.Empty(t, pods)
	require.Len(t, out, 3)

	infra := out[0]
	assert.Equal(t, "shop_infra", infra.Name)
	assert.Equal(t, InfraImage, infra.Image)
	assert.Equal(t, compose.PortList{"80:80", "8080:8080"}, infra.Spec.Ports)
	assert.Contains(t, []string(infra.Spec.ExtraHosts), "mirror:10.1.1.1")
	assert.Contains(t, []string(infra.Spec.ExtraHosts), "backend:127.0.0.1")
	assert.Contains(t, []string(infra.Spec.ExtraHosts), "shop_api_1:127.0.0.1")

	for _, c := range out[1:] {
		assert.Empty(t, c.Spec.Ports)
		assert.Empty(t, c.Spec.ExtraHosts)
		assert.Empty(t, c.Spec.Hostname)
		assert.Equal(t, "container:shop_infra", c.Spec.NetworkMode)
		assert.Contains(t, c.Deps, "shop_infra")
	}
}

func TestContainerNet_HostEntriesNotDuplicated(t *testing.T) {
	index, containers := fixture()

	_, out := ContainerNet{}.Transform("shop", index, containers)

	count := 0
	for _, h := range out[0].Spec.ExtraHosts {
		if h == "web:127.0.0.1" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestOnePod_KeepsPorts(t *testing.T) {
	index, containers := fixture()

	pods, out := OnePod{}.Transform("shop", index, containers)

	assert.Equal(t, []Pod{{Name: "shop"}}, pods)
	for _, c := range out {
		assert.Equal(t, "shop", c.Pod)
		assert.NotEmpty(t, c.Spec.Ports)
	}
}

func TestOnePodWithForwarding_MovesPorts(t *testing.T) {
	index, containers := fixture()

	pods, out := OnePodWithForwarding{}.Transform("shop", index, containers)

	require.Len(t, pods, 1)
	assert.Equal(t, Pod{Name: "shop", Ports: []string{"80:80", "8080:8080"}}, pods[0])
	for _, c := range out {
		assert.Equal(t, "shop", c.Pod)
		assert.Empty(t, c.Spec.Ports)
		assert.Contains(t, []string(c.Spec.ExtraHosts), "api:127.0.0.1")
	}
	assert.Equal(t, compose.PortList{"80:80"}, containers[0].Spec.Ports)
}

func TestStrategies_EmptyProject(t *testing.T) {
	index := deployment.NewServiceIndex()
	for _, name := range Names() {
		s, err := Lookup(name)
		require.NoError(t, err)
		_, out := s.Transform("p", index, nil)
		if name == "cntnet" {
			assert.Len(t, out, 1)
			continue
		}
		assert.Empty(t, out)
	}
}
