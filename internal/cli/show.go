package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/tasklist/internal/app"
	"github.com/dshills/tasklist/internal/project"
	"github.com/dshills/tasklist/internal/task"
)

// shownTask is the YAML rendering of a resolved task.
type shownTask struct {
	task.Config `yaml:",inline"`

	Shell string `yaml:"shell,omitempty"`
	Final string `yaml:"command_line"`
}

func newShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK [-- ARG...]",
		Short: "Print a task's effective configuration without running it",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ids, taskArgs := splitAtDash(cmd, args)
			if len(ids) != 1 {
				return errors.New("show requires exactly one task")
			}

			a, err := g.open()
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			cfg, err := a.Show(ids[0], taskArgs)
			if err != nil {
				return err
			}

			shown := shownTask{Config: *cfg, Final: cfg.CommandLine()}
			if cfg.Shell != nil {
				shown.Shell = cfg.Shell.String()
			}
			return writeYAML(g.out, shown)
		},
	}
}

// projectView is what info prints.
type projectView struct {
	Project   *app.ProjectInfo  `yaml:"project,omitempty"`
	Error     string            `yaml:"error,omitempty"`
	Display   project.Display   `yaml:"display"`
	Shell     []string          `yaml:"shell,flow"`
	StateFile string            `yaml:"state_file"`
	Variables map[string]string `yaml:"variables,omitempty"`
}

func newInfoCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the resolved project and the active settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := g.open()
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			cfg := a.Config()
			view := projectView{
				Display:   project.Display(cfg.Display),
				Shell:     cfg.Shell,
				StateFile: cfg.StateFile,
			}
			if vars := a.Variables(); len(vars) > 0 {
				view.Variables = make(map[string]string, len(vars))
				for _, v := range vars {
					view.Variables[v.Name] = v.Value
				}
			}

			// A missing project is reported, not fatal: info is how users
			// find out why resolution fails.
			info, err := a.ProjectInfo()
			if err != nil {
				view.Error = err.Error()
			} else {
				view.Project = info
			}
			return writeYAML(g.out, view)
		},
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
