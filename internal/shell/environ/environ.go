// Package environ reads the inputs of a planning pass from the outside
// world: the compose file, the process environment and dotenv files.
package environ

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"

	"github.com/artpar/podcompose/internal/core/compose"
)

var (
	ErrComposeFileNotFound = errors.New("no compose file found")
	ErrEnvFileNotFound     = errors.New("env file not found")
)

// ComposeFileNames are the file names looked up, in order, when no compose
// file is given.
var ComposeFileNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
	"podman-compose.yml",
	"podman-compose.yaml",
}

// OverrideFileNames are the files looked up, in order, to merge on top of a
// discovered compose file.
var OverrideFileNames = []string{
	"compose.override.yml",
	"compose.override.yaml",
	"docker-compose.override.yml",
	"docker-compose.override.yaml",
}

// DefaultEnvFile is the dotenv file read from the compose directory.
const DefaultEnvFile = ".env"

// =============================================================================
// Compose File
// =============================================================================

// Source is a compose file read from disk.
type Source struct {
	Path    string // absolute
	Dir     string
	Content []byte
}

// FindComposeFile returns the first standard compose file in dir.
func FindComposeFile(dir string) (string, error) {
	for _, name := range ComposeFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrComposeFileNotFound, dir, strings.Join(ComposeFileNames, ", "))
}

// FindComposeFiles returns the first standard compose file in dir followed
// by the first override file, if there is one.
func FindComposeFiles(dir string) ([]string, error) {
	base, err := FindComposeFile(dir)
	if err != nil {
		return nil, err
	}
	files := []string{base}
	for _, name := range OverrideFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			files = append(files, path)
			break
		}
	}
	return files, nil
}

// ComposeFiles returns the compose files of a project: paths when given,
// else COMPOSE_FILE from env split on COMPOSE_PATH_SEPARATOR (the OS list
// separator by default), else the files discovered in dir.
func ComposeFiles(paths []string, env compose.Provider, dir string) ([]string, error) {
	if len(paths) > 0 {
		return paths, nil
	}
	if list, ok := env.Lookup("COMPOSE_FILE"); ok && list != "" {
		sep := string(os.PathListSeparator)
		if s, ok := env.Lookup("COMPOSE_PATH_SEPARATOR"); ok && s != "" {
			sep = s
		}
		var files []string
		for _, f := range strings.Split(list, sep) {
			if f = strings.TrimSpace(f); f != "" {
				files = append(files, f)
			}
		}
		if len(files) > 0 {
			return files, nil
		}
	}
	return FindComposeFiles(dir)
}

// Load reads the compose files of a project in merge order. With no paths
// they are taken from COMPOSE_FILE or discovered in the working directory.
func Load(paths []string) ([]Source, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	files, err := ComposeFiles(paths, Process(), wd)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(files))
	for _, f := range files {
		src, err := readSource(f)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, nil
}

func readSource(path string) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrComposeFileNotFound, abs)
		}
		return nil, fmt.Errorf("read compose file: %w", err)
	}
	return &Source{
		Path:    abs,
		Dir:     filepath.Dir(abs),
		Content: content,
	}, nil
}

// =============================================================================
// Providers
// =============================================================================

// Process returns the process environment as a provider.
func Process() compose.MapProvider {
	return compose.EnvironProvider(os.Environ())
}

// EnvFile reads a dotenv file. Variables referenced in values are expanded
// from current first, then from earlier lines of the file.
func EnvFile(path string, current map[string]string) (compose.MapProvider, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrEnvFileNotFound, path)
		}
		return nil, err
	}
	env, err := dotenv.GetEnvFromFile(current, []string{path})
	if err != nil {
		return nil, err
	}
	return compose.MapProvider(env), nil
}

// Providers returns the variable providers for a project in lookup order:
// the process environment, then the env file. With envFile empty the
// default .env in dir is used when it exists. A relative envFile is
// resolved against dir.
func Providers(dir, envFile string) ([]compose.Provider, error) {
	process := Process()
	providers := []compose.Provider{process}

	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(dir, envFile)
	}

	file, err := EnvFile(envFile, process)
	switch {
	case err == nil:
		providers = append(providers, file)
	case !explicit && errors.Is(err, ErrEnvFileNotFound):
	default:
		return nil, err
	}
	return providers, nil
}

// Home returns the user's home directory, or "" if it cannot be determined.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
