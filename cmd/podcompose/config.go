package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/artpar/podcompose/internal/core/deployment"
	"github.com/artpar/podcompose/internal/core/topology"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Compose ComposeConfig `mapstructure:"compose"`
	Plan    PlanConfig    `mapstructure:"plan"`
	Podman  PodmanConfig  `mapstructure:"podman"`
	Log     LogConfig     `mapstructure:"log"`
	DryRun  bool          `mapstructure:"dry_run"`
}

// ComposeConfig selects the document and how it is read.
type ComposeConfig struct {
	Files           []string `mapstructure:"file"`         // COMPOSE_FILE or discovered when empty
	ProjectName     string   `mapstructure:"project_name"` // resolved from the document when empty
	EnvFile         string   `mapstructure:"env_file"`
	TransformPolicy string   `mapstructure:"transform_policy"`
}

// PlanConfig holds dependency resolution options.
type PlanConfig struct {
	Ordering           string `mapstructure:"ordering"`
	StrictDependencies bool   `mapstructure:"strict_dependencies"`
}

// PodmanConfig holds container engine configuration.
type PodmanConfig struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`

	// VolumeBackend is how named volumes are inspected and created.
	// "cli" - through the podman binary
	// "api" - through the engine's Docker-compatible API socket
	VolumeBackend string `mapstructure:"volume_backend"`

	// Host is the API socket for the "api" backend. Empty uses DOCKER_HOST
	// or the rootless podman socket.
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"file":                "compose.file",
	"project-name":        "compose.project_name",
	"env-file":            "compose.env_file",
	"transform-policy":    "compose.transform_policy",
	"ordering":            "plan.ordering",
	"strict-dependencies": "plan.strict_dependencies",
	"podman-path":         "podman.path",
	"podman-args":         "podman.args",
	"volume-backend":      "podman.volume_backend",
	"podman-host":         "podman.host",
	"log-level":           "log.level",
	"log-format":          "log.format",
	"dry-run":             "dry_run",
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from defaults, an optional file, the
// environment and flags, in increasing precedence. flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("compose.file", []string{})
	v.SetDefault("compose.project_name", "")
	v.SetDefault("compose.env_file", "")
	v.SetDefault("compose.transform_policy", topology.Default)
	v.SetDefault("plan.ordering", string(deployment.OrderingLegacy))
	v.SetDefault("plan.strict_dependencies", false)
	v.SetDefault("podman.path", "podman")
	v.SetDefault("podman.args", []string{})
	v.SetDefault("podman.volume_backend", "cli")
	v.SetDefault("podman.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("dry_run", false)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("%w: failed to parse config file: %w", ErrInvalidConfig, err)
			}
			return nil, fmt.Errorf("%w: read config file %s: %w", ErrInvalidConfig, configPath, err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("PODCOMPOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values that have a fixed set of choices.
func (c *Config) Validate() error {
	if _, err := topology.Lookup(c.Compose.TransformPolicy); err != nil {
		return fmt.Errorf("%w: compose.transform_policy: %w", ErrInvalidConfig, err)
	}
	switch deployment.Ordering(c.Plan.Ordering) {
	case deployment.OrderingLegacy, deployment.OrderingTopological:
	default:
		return fmt.Errorf("%w: plan.ordering must be legacy or topological, got %q", ErrInvalidConfig, c.Plan.Ordering)
	}
	if !slices.Contains([]string{"cli", "api"}, c.Podman.VolumeBackend) {
		return fmt.Errorf("%w: podman.volume_backend must be cli or api, got %q", ErrInvalidConfig, c.Podman.VolumeBackend)
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
