// Package docker talks to a container engine through its Docker-compatible
// REST API. Podman serves this API on its service socket.
package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
)

// =============================================================================
// Engine Client Implementation
// =============================================================================

// DockerClient implements mount.VolumeStore using the Docker SDK.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient creates a new engine client.
// If host is empty, it uses DOCKER_HOST and friends from the environment and
// falls back to the rootless podman socket when that is not reachable.
func NewDockerClient(host string) (*DockerClient, error) {
	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, volumeError("connect", "", err.Error(), ErrConnectionFailed)
	}
	if host != "" {
		return &DockerClient{cli: cli}, nil
	}

	ctx := context.Background()
	if _, pingErr := cli.Ping(ctx); pingErr != nil {
		socket := podmanSocket()
		if socket == "" {
			return &DockerClient{cli: cli}, nil
		}

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost("unix://"+socket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return &DockerClient{cli: cli2}, nil
			}
			cli2.Close()
		}
	}

	return &DockerClient{cli: cli}, nil
}

// podmanSocket returns the rootless podman API socket, if there is one.
func podmanSocket() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = fmt.Sprintf("/run/user/%d", os.Getuid())
	}
	socket := filepath.Join(runtimeDir, "podman", "podman.sock")
	if _, err := os.Stat(socket); err != nil {
		return ""
	}
	return socket
}

// Ping checks if the engine is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return volumeError("ping", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Volume Operations
// =============================================================================

// InspectVolume returns the host mountpoint of a volume.
func (d *DockerClient) InspectVolume(ctx context.Context, name string) (string, error) {
	resp, err := d.cli.VolumeInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", volumeError("inspect", name, "volume not found", ErrVolumeNotFound)
		}
		return "", volumeError("inspect", name, err.Error(), err)
	}
	if resp.Mountpoint == "" {
		return "", volumeError("inspect", name, "volume has no mountpoint", ErrVolumeNotFound)
	}
	return resp.Mountpoint, nil
}

// CreateVolume creates a local volume with the given labels.
func (d *DockerClient) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	_, err := d.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Driver: "local",
		Labels: labels,
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return volumeError("create", name, "volume already exists", ErrVolumeAlreadyExists)
		}
		return volumeError("create", name, err.Error(), err)
	}
	return nil
}
