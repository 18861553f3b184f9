package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/artpar/podcompose/internal/core/compose"
	"github.com/artpar/podcompose/internal/core/deployment"
	"github.com/artpar/podcompose/internal/core/mount"
	"github.com/artpar/podcompose/internal/engine"
	"github.com/artpar/podcompose/internal/shell/docker"
	"github.com/artpar/podcompose/internal/shell/environ"
	"github.com/artpar/podcompose/internal/shell/podman"
)

// app is the state shared by all subcommands of one invocation.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	noRecreate bool
	validate   bool
}

// newRootCommand builds the command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "podcompose",
		Short:         "Run compose projects with podman",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &CommandError{Op: cmd.Name(), Err: err, ExitCode: ExitConfigError}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to config file")
	addConfigFlags(pf)

	up := &cobra.Command{
		Use:   "up",
		Short: "Create and start the project's pods and containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, "up")
		},
	}
	up.Flags().BoolVar(&a.noRecreate, "no-recreate", false, "Do not remove existing containers first")

	down := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the project's containers and pods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, "down")
		},
	}

	config := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.validate {
				return a.validateDocument(cmd)
			}
			return a.dispatch(cmd, "config")
		},
	}
	config.Flags().BoolVar(&a.validate, "validate", false, "Report every problem in the document and exit")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "podcompose %s (built %s)\n", Version, BuildTime)
		},
	}

	root.AddCommand(up, down, config, version)
	for _, name := range []string{"build", "pull", "push"} {
		root.AddCommand(&cobra.Command{
			Use:   name,
			Short: "Not implemented",
			RunE: func(cmd *cobra.Command, args []string) error {
				return engine.NewBus(&engine.Deps{}).Dispatch(cmd.Context(), cmd.Name(), engine.Input{})
			},
		})
	}
	return root
}

func addConfigFlags(pf *pflag.FlagSet) {
	pf.StringArrayP("file", "f", nil, "Compose file, repeat to merge (default: COMPOSE_FILE or discovered in the working directory)")
	pf.StringP("project-name", "p", "", "Project name (default: name key, COMPOSE_PROJECT_NAME or the compose directory)")
	pf.String("env-file", "", "Env file (default: .env beside the compose file)")
	pf.StringP("transform-policy", "t", "", "Topology strategy: identity, publishall, hostnet, cntnet, 1pod, 1podfw")
	pf.String("ordering", "", "Container ordering: legacy or topological")
	pf.Bool("strict-dependencies", false, "Reject dependency cycles")
	pf.String("podman-path", "", "Path to the podman binary")
	pf.StringSlice("podman-args", nil, "Global arguments passed to every podman invocation")
	pf.String("volume-backend", "", "Volume backend: cli or api")
	pf.String("podman-host", "", "Engine API socket for the api volume backend")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.Bool("dry-run", false, "Print podman commands instead of running them")
}

// =============================================================================
// Command Execution
// =============================================================================

// session is a loaded configuration plus the document it points at.
type session struct {
	cfg    *Config
	logger *slog.Logger
	input  engine.Input
}

func (a *app) load(cmd *cobra.Command) (*session, error) {
	cfg, err := LoadConfig(a.configPath, cmd.Flags())
	if err != nil {
		return nil, &CommandError{Op: "load config", Err: err, ExitCode: ExitConfigError}
	}
	logger := SetupLogger(cfg, a.stderr)

	sources, err := environ.Load(cfg.Compose.Files)
	if err != nil {
		return nil, &CommandError{Op: "load compose file", Err: err, ExitCode: ExitConfigError}
	}
	dir := sources[0].Dir
	providers, err := environ.Providers(dir, cfg.Compose.EnvFile)
	if err != nil {
		return nil, &CommandError{Op: "load env file", Err: err, ExitCode: ExitConfigError}
	}

	files := make([]compose.File, len(sources))
	for i, src := range sources {
		files[i] = compose.File{Path: src.Path, Content: src.Content}
		logger.Debug("compose file loaded", "file", src.Path)
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		input: engine.Input{
			Files:              files,
			Dir:                dir,
			Home:               environ.Home(),
			Project:            cfg.Compose.ProjectName,
			Version:            Version,
			Providers:          providers,
			ReadFile:           os.ReadFile,
			Strategy:           cfg.Compose.TransformPolicy,
			Ordering:           deployment.Ordering(cfg.Plan.Ordering),
			StrictDependencies: cfg.Plan.StrictDependencies,
			SkipVolumes:        cfg.DryRun,
		},
	}, nil
}

func (a *app) dispatch(cmd *cobra.Command, command string) error {
	s, err := a.load(cmd)
	if err != nil {
		return err
	}

	var exec engine.Executor
	var store mount.VolumeStore
	if s.cfg.DryRun {
		exec = podman.NewDryRun(s.cfg.Podman.Path, a.stdout)
	} else {
		cli := podman.NewCLI(s.cfg.Podman.Path, s.cfg.Podman.Args, s.logger)
		cli.SetOutput(a.stdout, a.stderr)
		exec = cli
		store = cli

		if s.cfg.Podman.VolumeBackend == "api" && command == "up" {
			client, err := docker.NewDockerClient(s.cfg.Podman.Host)
			if err != nil {
				return &CommandError{Op: "connect to engine", Err: err, ExitCode: ExitResolutionError}
			}
			defer client.Close()
			if err := client.Ping(cmd.Context()); err != nil {
				return &CommandError{Op: "connect to engine", Err: err, ExitCode: ExitResolutionError}
			}
			store = client
		}
	}

	bus := engine.NewBus(&engine.Deps{
		Planner: engine.NewPlanner(store, s.logger),
		Runner:  engine.NewRunner(exec, s.logger),
		Logger:  s.logger,
		Output:  a.printPlan,
		Up:      engine.UpOptions{NoRecreate: a.noRecreate},
	})
	return bus.Dispatch(cmd.Context(), command, s.input)
}

func (a *app) validateDocument(cmd *cobra.Command) error {
	s, err := a.load(cmd)
	if err != nil {
		return err
	}
	if err := engine.NewPlanner(nil, s.logger).Validate(cmd.Context(), s.input); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "configuration is valid")
	return nil
}

func (a *app) printPlan(plan *engine.Plan) error {
	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return err
	}
	return enc.Close()
}
