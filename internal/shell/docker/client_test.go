package docker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/podcompose/internal/core/mount"
)

// =============================================================================
// Test Helpers
// =============================================================================

func skipIfNoDocker(t *testing.T) *DockerClient {
	t.Helper()
	cli, err := NewDockerClient("")
	if err != nil {
		t.Skip("engine not available:", err)
	}
	if err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skip("engine not reachable:", err)
	}
	return cli
}

func cleanupVolume(t *testing.T, cli *DockerClient, name string) {
	t.Helper()
	cli.cli.VolumeRemove(context.Background(), name, true)
}

// Test volume name prefix to identify test volumes
const testPrefix = "podcompose-test-"

var _ mount.VolumeStore = (*DockerClient)(nil)

// =============================================================================
// Error Tests
// =============================================================================

func TestVolumeError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *VolumeError
		want string
	}{
		{"with volume", volumeError("inspect", "shop_data", "volume not found", ErrVolumeNotFound), "volume shop_data: inspect: volume not found"},
		{"without volume", volumeError("ping", "", "connection refused", ErrConnectionFailed), "ping: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestVolumeError_Unwrap(t *testing.T) {
	err := volumeError("inspect", "x", "volume not found", ErrVolumeNotFound)

	assert.True(t, errors.Is(err, ErrVolumeNotFound))
	var ve *VolumeError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "x", ve.Volume)
}

// =============================================================================
// Volume Tests
// =============================================================================

func TestVolume_CreateInspectRemove(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	ctx := context.Background()
	name := testPrefix + "data"
	defer cleanupVolume(t, cli, name)

	err := cli.CreateVolume(ctx, name, mount.Labels("podcompose-test"))
	require.NoError(t, err)

	mountpoint, err := cli.InspectVolume(ctx, name)
	require.NoError(t, err)
	assert.NotEmpty(t, mountpoint)

	info, err := cli.cli.VolumeInspect(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "podcompose-test", info.Labels[mount.LabelProject])

	err = cli.CreateVolume(ctx, name, nil)
	assert.ErrorIs(t, err, ErrVolumeAlreadyExists)
}

func TestNewDockerClient_PingUnreachable(t *testing.T) {
	cli, err := NewDockerClient("unix://" + filepath.Join(t.TempDir(), "missing.sock"))
	require.NoError(t, err)
	defer cli.Close()

	err = cli.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestVolume_InspectMissing(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	_, err := cli.InspectVolume(context.Background(), testPrefix+"does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVolumeNotFound)
}

func TestVolume_ResolverRoundTrip(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	project := "podcompose-test"
	name := mount.VolumeName(project, "cache")
	defer cleanupVolume(t, cli, name)

	r := mount.NewResolver(cli, project, nil)
	d, err := r.Resolve(context.Background(), mount.Descriptor{Type: mount.TypeVolume, Source: "cache", Target: "/cache"})
	require.NoError(t, err)
	assert.Equal(t, mount.TypeBind, d.Type)
	assert.NotEmpty(t, d.Source)
	assert.Equal(t, "Z", d.Bind.Propagation)
}
