package environ

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/podcompose/internal/core/compose"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// Compose File Tests
// =============================================================================

func TestFindComposeFile_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "compose.yaml", "services: {}")
	writeFile(t, dir, "docker-compose.yml", "services: {}")

	path, err := FindComposeFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "docker-compose.yml"), path)
}

func TestFindComposeFile_PodmanName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "podman-compose.yml", "services: {}")

	path, err := FindComposeFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "podman-compose.yml"), path)
}

func TestFindComposeFile_None(t *testing.T) {
	_, err := FindComposeFile(t.TempDir())
	assert.ErrorIs(t, err, ErrComposeFileNotFound)
}

func TestFindComposeFiles_Override(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "compose.yml", "services: {}")
	writeFile(t, dir, "compose.override.yml", "services: {}")

	files, err := FindComposeFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "compose.yml"),
		filepath.Join(dir, "compose.override.yml"),
	}, files)
}

func TestComposeFiles_ExplicitWins(t *testing.T) {
	env := compose.MapProvider{"COMPOSE_FILE": "other.yml"}

	files, err := ComposeFiles([]string{"a.yml", "b.yml"}, env, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yml", "b.yml"}, files)
}

func TestComposeFiles_FromEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  compose.MapProvider
		want []string
	}{
		{"os separator", compose.MapProvider{"COMPOSE_FILE": "a.yml" + string(os.PathListSeparator) + "b.yml"}, []string{"a.yml", "b.yml"}},
		{"custom separator", compose.MapProvider{"COMPOSE_FILE": "a.yml;b.yml;", "COMPOSE_PATH_SEPARATOR": ";"}, []string{"a.yml", "b.yml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := ComposeFiles(nil, tt.env, t.TempDir())
			require.NoError(t, err)
			assert.Equal(t, tt.want, files)
		})
	}
}

func TestComposeFiles_Discovers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "podman-compose.yml", "services: {}")

	files, err := ComposeFiles(nil, compose.MapProvider{}, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "podman-compose.yml")}, files)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "compose.yml", "services:\n  web: {image: nginx}\n")
	override := writeFile(t, dir, "dev.yml", "services:\n  web: {hostname: dev}\n")

	sources, err := Load([]string{path, override})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, path, sources[0].Path)
	assert.Equal(t, dir, sources[0].Dir)
	assert.Contains(t, string(sources[0].Content), "nginx")
	assert.Equal(t, override, sources[1].Path)
}

func TestLoad_ComposeFileVariable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stack.yml", "services:\n  web: {image: nginx}\n")
	t.Setenv("COMPOSE_FILE", path)
	t.Setenv("COMPOSE_PATH_SEPARATOR", "")

	sources, err := Load(nil)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, path, sources[0].Path)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load([]string{filepath.Join(t.TempDir(), "compose.yml")})
	assert.ErrorIs(t, err, ErrComposeFileNotFound)
}

// =============================================================================
// Provider Tests
// =============================================================================

func TestProcess(t *testing.T) {
	t.Setenv("PODCOMPOSE_TEST_VAR", "from-env")

	v, ok := Process().Lookup("PODCOMPOSE_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)
}

func TestEnvFile_Expands(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "# comment\nTAG=1.27\nIMAGE=nginx:${TAG}\nQUOTED=\"a b\"\n")

	env, err := EnvFile(path, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "nginx:1.27", env["IMAGE"])
	assert.Equal(t, "a b", env["QUOTED"])
}

func TestProviders_DefaultEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "PODCOMPOSE_TEST_ONLY_FILE=file\nPODCOMPOSE_TEST_BOTH=file\n")
	t.Setenv("PODCOMPOSE_TEST_BOTH", "process")

	providers, err := Providers(dir, "")
	require.NoError(t, err)
	require.Len(t, providers, 2)

	s := compose.NewSubstituter(providers...)
	got, err := s.String("${PODCOMPOSE_TEST_ONLY_FILE}/${PODCOMPOSE_TEST_BOTH}")
	require.NoError(t, err)
	assert.Equal(t, "file/process", got)
}

func TestProviders_NoDefaultEnvFile(t *testing.T) {
	providers, err := Providers(t.TempDir(), "")
	require.NoError(t, err)
	assert.Len(t, providers, 1)
}

func TestProviders_ExplicitMissing(t *testing.T) {
	_, err := Providers(t.TempDir(), "prod.env")
	assert.ErrorIs(t, err, ErrEnvFileNotFound)
}

func TestProviders_ExplicitRelative(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prod.env", "PODCOMPOSE_TEST_STAGE=prod\n")

	providers, err := Providers(dir, "prod.env")
	require.NoError(t, err)
	v, ok := providers[1].Lookup("PODCOMPOSE_TEST_STAGE")
	assert.True(t, ok)
	assert.Equal(t, "prod", v)
}
