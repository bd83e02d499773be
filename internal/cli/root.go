// Package cli implements the tasklist command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/tasklist/internal/app"
	"github.com/dshills/tasklist/internal/config"
	"github.com/dshills/tasklist/internal/logger"
	"github.com/dshills/tasklist/internal/project"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// globals holds the persistent flags and standard streams shared by every
// command.
type globals struct {
	configPath string
	cwd        string
	logLevel   string
	logJSON    bool
	createCwd  bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	log logger.Logger
}

// Execute runs the command line with args and returns the exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	g := &globals{in: in, out: out, errOut: errOut, log: logger.Discard()}

	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	code := ExitCode(err)

	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return code
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "tasklist",
		Short:         "Run the named tasks of a project",
		Long:          "tasklist reads the .tasklist descriptor at a project root and runs its tasks,\neach on its own reusable output surface.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "path to the config file (default "+config.DefaultPath()+")")
	flags.StringVarP(&g.cwd, "cwd", "C", "", "directory the project lookup starts from")
	flags.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&g.logJSON, "log-json", false, "write logs as JSON")
	flags.BoolVar(&g.createCwd, "create-cwd", false, "create a missing task working directory without asking")

	root.AddCommand(
		newRunCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newInfoCmd(g),
		newRootsCmd(g),
	)
	return root
}

// loadConfig reads the configuration and applies the logging flags.
func (g *globals) loadConfig() (*config.Config, error) {
	var opts []config.Option
	if g.configPath != "" {
		opts = append(opts, config.WithPath(g.configPath))
	}
	loader := config.NewLoader(opts...)

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logJSON {
		cfg.Log.JSON = true
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}

	g.log = logger.New(&logger.Config{
		Level:      logger.Level(cfg.Log.Level),
		Output:     g.errOut,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	g.log.Debug("configuration loaded", "path", loader.Path())
	return cfg, nil
}

// open builds the application for one command. The caller closes it.
func (g *globals) open() (*app.Application, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	workDir := g.cwd
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	return app.New(app.Options{
		Config:     cfg,
		Sessions:   project.NewSessionStore(cfg.StateFile),
		ConfirmCwd: g.confirmFunc(),
		WorkDir:    workDir,
		Logger:     g.log,
	})
}

// closeApp shuts a down, keeping the command's own error when there is one.
func closeApp(ctx context.Context, a *app.Application, err *error) {
	if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && *err == nil {
		*err = cerr
	}
}
