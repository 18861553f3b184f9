package podman

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/podcompose/internal/core/mount"
	"github.com/artpar/podcompose/internal/engine"
)

var (
	_ engine.Executor   = (*CLI)(nil)
	_ engine.Executor   = (*DryRun)(nil)
	_ mount.VolumeStore = (*CLI)(nil)
)

// fakePodman writes a shell script that logs its arguments to a file and
// behaves according to body. It returns the script path and the log path.
func fakePodman(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	script := "#!/bin/sh\necho \"$*\" >> " + logPath + "\n" + body + "\n"
	path := filepath.Join(dir, "podman")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, logPath
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// =============================================================================
// CLI Tests
// =============================================================================

func TestCLI_Run(t *testing.T) {
	path, logPath := fakePodman(t, "echo started")
	var stdout, stderr bytes.Buffer
	cli := NewCLI(path, []string{"--log-level=error"}, nil)
	cli.SetOutput(&stdout, &stderr)

	err := cli.Run(context.Background(), []string{"run", "--name=shop_web_1", "-d", "nginx"})
	require.NoError(t, err)
	assert.Equal(t, "started\n", stdout.String())
	assert.Equal(t, []string{"--log-level=error run --name=shop_web_1 -d nginx"}, readCalls(t, logPath))
}

func TestCLI_RunFailure(t *testing.T) {
	path, _ := fakePodman(t, "echo 'no such container' >&2\nexit 125")
	var stdout, stderr bytes.Buffer
	cli := NewCLI(path, nil, nil)
	cli.SetOutput(&stdout, &stderr)

	err := cli.Run(context.Background(), []string{"stop", "-t=1", "missing"})
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 125, execErr.ExitCode)
	assert.Equal(t, "no such container", execErr.Stderr)
	assert.Equal(t, []string{"stop", "-t=1", "missing"}, execErr.Args)
	assert.Contains(t, err.Error(), "podman stop -t=1 missing: exit status 125")
	assert.Contains(t, stderr.String(), "no such container")
}

func TestCLI_MissingBinary(t *testing.T) {
	cli := NewCLI(filepath.Join(t.TempDir(), "nope"), nil, nil)

	err := cli.Run(context.Background(), []string{"ps"})
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, -1, execErr.ExitCode)
}

func TestCLI_InspectVolume(t *testing.T) {
	path, logPath := fakePodman(t, "echo /var/lib/containers/storage/volumes/shop_data/_data")
	cli := NewCLI(path, nil, nil)

	mp, err := cli.InspectVolume(context.Background(), "shop_data")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/containers/storage/volumes/shop_data/_data", mp)
	assert.Equal(t, []string{"volume inspect --format {{.Mountpoint}} shop_data"}, readCalls(t, logPath))
}

func TestCLI_CreateVolume(t *testing.T) {
	path, logPath := fakePodman(t, "echo shop_data")
	cli := NewCLI(path, nil, nil)

	err := cli.CreateVolume(context.Background(), "shop_data", mount.Labels("shop"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"volume create --label com.docker.compose.project=shop --label io.podman.compose.project=shop shop_data",
	}, readCalls(t, logPath))
}

func TestCLI_ResolverCreatesThenInspects(t *testing.T) {
	// inspect fails until create has run
	path, logPath := fakePodman(t, `
dir=$(dirname "$0")
case "$1 $2" in
  "volume create") touch "$dir/created" ;;
  "volume inspect") [ -f "$dir/created" ] || exit 1; echo /vol/shop_cache ;;
esac`)
	var stderr bytes.Buffer
	cli := NewCLI(path, nil, nil)
	cli.SetOutput(&bytes.Buffer{}, &stderr)

	r := mount.NewResolver(cli, "shop", nil)
	d, err := r.Resolve(context.Background(), mount.Descriptor{Type: mount.TypeVolume, Source: "cache", Target: "/cache"})
	require.NoError(t, err)
	assert.Equal(t, "/vol/shop_cache", d.Source)

	calls := readCalls(t, logPath)
	require.Len(t, calls, 3)
	assert.True(t, strings.HasPrefix(calls[1], "volume create"))
}

// =============================================================================
// DryRun Tests
// =============================================================================

func TestDryRun_PrintsQuotedCommand(t *testing.T) {
	var out bytes.Buffer
	d := NewDryRun("", &out)

	err := d.Run(context.Background(), []string{"run", "--name=shop_web_1", "--healthcheck-command", "/bin/sh -c 'curl -f x'", "nginx"})
	require.NoError(t, err)
	err = d.Run(context.Background(), []string{"pod", "rm", "shop"})
	require.NoError(t, err)

	assert.Equal(t,
		`podman run '--name=shop_web_1' --healthcheck-command "/bin/sh -c 'curl -f x'" nginx`+"\n"+
			"podman pod rm shop\n",
		out.String())
}

func TestCommandLine_RejectsNul(t *testing.T) {
	_, err := CommandLine("podman", []string{"a\x00b"})
	assert.Error(t, err)
}
