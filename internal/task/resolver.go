package task

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/tasklist/internal/project"
	"github.com/dshills/tasklist/internal/subst"
)

// ErrUnknownTask indicates the descriptor has no task with the requested ID.
var ErrUnknownTask = errors.New("unknown task")

// UnknownTaskError reports an unknown task together with the valid IDs.
type UnknownTaskError struct {
	ID    string
	Known []string
}

// Error implements the error interface.
func (e *UnknownTaskError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown task %q (descriptor defines no tasks)", e.ID)
	}
	return fmt.Sprintf("unknown task %q (known: %s)", e.ID, strings.Join(e.Known, ", "))
}

// Unwrap returns ErrUnknownTask.
func (e *UnknownTaskError) Unwrap() error {
	return ErrUnknownTask
}

// ShellMarker is the variable name the composed command replaces in a shell
// template ("%s").
const ShellMarker = "s"

// Shell is a substituted shell template split around its command marker.
type Shell struct {
	Prefix string
	Suffix string
}

// Wrap places command at the template's marker.
func (s Shell) Wrap(command string) string {
	return s.Prefix + command + s.Suffix
}

// String renders the template with the marker restored.
func (s Shell) String() string {
	return s.Prefix + "%" + ShellMarker + s.Suffix
}

// Config is a fully merged and substituted task, ready to run.
type Config struct {
	ID      string          `yaml:"id"`
	Name    string          `yaml:"name"`
	Command string          `yaml:"command"`
	Cwd     string          `yaml:"cwd"`
	Env     []string        `yaml:"env,omitempty"`
	Window  string          `yaml:"window"`
	Shell   *Shell          `yaml:"-"`
	Display project.Display `yaml:"display"`
	Args    []string        `yaml:"args,omitempty"`
}

// CommandLine returns the command as handed to the system: wrapped in the
// task shell when one is configured.
func (c *Config) CommandLine() string {
	if c.Shell == nil {
		return c.Command
	}
	return c.Shell.Wrap(c.Command)
}

// ResolveOptions carry the process-wide inputs to resolution.
type ResolveOptions struct {
	// Globals is the process-wide variable mapping, searched after the
	// descriptor's common variables.
	Globals subst.Source

	// DefaultDisplay is used when the task does not set :display.
	DefaultDisplay project.Display

	// Args override the task's default-args by position.
	Args []string
}

// Resolve merges task id of desc over the descriptor's common section and
// applies variable substitution to every string field.
func Resolve(id, root string, desc *project.Descriptor, opts ResolveOptions) (*Config, error) {
	def, ok := desc.Task(id)
	if !ok {
		return nil, &UnknownTaskError{ID: id, Known: desc.TaskIDs()}
	}
	common := desc.Common

	args := positional(def.DefaultArgs, opts.Args)
	sub := func(s string) string {
		return subst.Substitute(s, args, common.Variables, opts.Globals)
	}

	cfg := &Config{
		ID:      id,
		Command: sub(strings.Join(def.Command, " ")),
		Display: firstDisplay(def.Display, opts.DefaultDisplay),
		Args:    args,
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("task %q: empty command", id)
	}

	// A name keeps its substituted form only when every marker resolved.
	cfg.Name = id
	if def.Name != "" {
		name, ok := subst.SubstituteAll(def.Name, args, common.Variables, opts.Globals)
		if ok && name != "" {
			cfg.Name = name
		}
	}

	cfg.Window = cfg.Name
	if w := firstString(def.Window, common.Window); w != "" {
		cfg.Window = sub(w)
	}

	cfg.Cwd = resolveCwd(root, sub(firstString(def.Cwd, common.Cwd)))

	env := make([]string, 0, len(def.Env)+len(common.Env))
	env = append(env, def.Env...)
	env = append(env, common.Env...)
	if len(env) > 0 {
		cfg.Env = env
	}

	if tmpl := firstString(def.Shell, common.Shell); tmpl != "" {
		cfg.Shell = shellTemplate(tmpl, sub)
	}

	return cfg, nil
}

// positional overlays invocation args on the task's default args.
func positional(defaults, args []string) []string {
	n := max(len(defaults), len(args))
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	copy(out, defaults)
	copy(out, args)
	return out
}

// resolveCwd roots a relative cwd at root by plain concatenation so a
// trailing separator on either side is preserved.
func resolveCwd(root, cwd string) string {
	switch {
	case cwd == "":
		return root
	case filepath.IsAbs(cwd):
		return cwd
	case strings.HasSuffix(root, string(filepath.Separator)):
		return root + cwd
	default:
		return root + string(filepath.Separator) + cwd
	}
}

// shellTemplate substitutes both halves of a template around its first
// unescaped %s. A template without the marker gets the command appended.
func shellTemplate(tmpl string, sub func(string) string) *Shell {
	before, after, ok := subst.SplitMarker(tmpl, ShellMarker)
	if !ok {
		return &Shell{Prefix: sub(tmpl) + " "}
	}
	return &Shell{Prefix: sub(before), Suffix: sub(after)}
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstDisplay(vals ...project.Display) project.Display {
	for _, v := range vals {
		if v != project.DisplayDefault {
			return v
		}
	}
	return project.DisplayDefault
}
