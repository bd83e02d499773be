package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tasklist/internal/project"
	"github.com/dshills/tasklist/internal/subst"
)

func mustParse(t *testing.T, src string) *project.Descriptor {
	t.Helper()
	d, err := project.ParseDescriptor([]byte(src))
	require.NoError(t, err)
	return d
}

func TestResolve_EndToEnd(t *testing.T) {
	d := mustParse(t, `((tasks (build :command ("echo" "hi"))))`)

	cfg, err := Resolve("build", "/p", d, ResolveOptions{DefaultDisplay: project.DisplaySplit})
	require.NoError(t, err)

	assert.Equal(t, "build", cfg.ID)
	assert.Equal(t, "build", cfg.Name)
	assert.Equal(t, "echo hi", cfg.Command)
	assert.Equal(t, "echo hi", cfg.CommandLine())
	assert.Equal(t, "/p", cfg.Cwd)
	assert.Equal(t, "build", cfg.Window)
	assert.Equal(t, project.DisplaySplit, cfg.Display)
	assert.Nil(t, cfg.Shell)
	assert.Empty(t, cfg.Env)
}

func TestResolve_Cwd(t *testing.T) {
	tests := []struct {
		name   string
		root   string
		common string
		task   string
		want   string
	}{
		{"common relative under slash root", "/p/", `:cwd "build/"`, "", "/p/build/"},
		{"common relative under bare root", "/p", `:cwd "build"`, "", "/p/build"},
		{"task absolute wins", "/p/", `:cwd "build/"`, `:cwd "/abs/path"`, "/abs/path"},
		{"task relative wins", "/p/", `:cwd "build/"`, `:cwd "src"`, "/p/src"},
		{"no cwd anywhere", "/p/", "", "", "/p/"},
		{"variables expanded", "/p/", `:cwd "out/%target" :variables (("target" . "debug"))`, "", "/p/out/debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `((common ` + tt.common + `) (tasks (t :command ("true") ` + tt.task + `)))`
			cfg, err := Resolve("t", tt.root, mustParse(t, src), ResolveOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Cwd)
		})
	}
}

func TestResolve_EnvConcatenation(t *testing.T) {
	d := mustParse(t, `((common :env ("B=2")) (tasks (t :command ("env") :env ("A=1"))))`)

	cfg, err := Resolve("t", "/p", d, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1", "B=2"}, cfg.Env)
}

func TestResolve_NameWindowDisplay(t *testing.T) {
	d := mustParse(t, `
((common :window "*%project*" :variables (("project" . "demo")))
 (tasks
  (build :name "Build %1" :command ("make" "%1") :default-args ("all") :display frame)
  (lint :command ("golangci-lint" "run") :window "lint-%project")
  (blank :name "%nothing" :command ("true"))
  (partial :name "Build %nosuchvar" :command ("true"))))`)

	build, err := Resolve("build", "/p", d, ResolveOptions{DefaultDisplay: project.DisplaySplit})
	require.NoError(t, err)
	assert.Equal(t, "Build all", build.Name)
	assert.Equal(t, "*demo*", build.Window)
	assert.Equal(t, project.DisplayFrame, build.Display)
	assert.Equal(t, "make all", build.Command)

	lint, err := Resolve("lint", "/p", d, ResolveOptions{DefaultDisplay: project.DisplaySplit})
	require.NoError(t, err)
	assert.Equal(t, "lint", lint.Name)
	assert.Equal(t, "lint-demo", lint.Window)
	assert.Equal(t, project.DisplaySplit, lint.Display)

	blank, err := Resolve("blank", "/p", d, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "blank", blank.Name, "an unresolved name falls back to the id")

	partial, err := Resolve("partial", "/p", d, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "partial", partial.Name)
	assert.Equal(t, "partial", partial.Window, "the window follows the fallback name")
}

func TestResolve_WindowFallsBackToName(t *testing.T) {
	d := mustParse(t, `((tasks (t :name "Tests" :command ("go" "test"))))`)

	cfg, err := Resolve("t", "/p", d, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Tests", cfg.Window)
}

func TestResolve_Args(t *testing.T) {
	d := mustParse(t, `((tasks (deploy :command ("deploy" "%1" "%2" "%3") :default-args ("staging" "v1"))))`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"defaults", nil, "deploy staging v1 %3"},
		{"override first", []string{"prod"}, "deploy prod v1 %3"},
		{"extend", []string{"prod", "v2", "fast"}, "deploy prod v2 fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve("deploy", "/p", d, ResolveOptions{Args: tt.args})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Command)
		})
	}
}

func TestResolve_VariablePrecedence(t *testing.T) {
	d := mustParse(t, `((common :variables (("mode" . "common"))) (tasks (t :command ("echo" "%mode" "%user"))))`)

	globals := subst.NewGlobals(map[string]string{"mode": "global", "user": "alice"})
	cfg, err := Resolve("t", "/p", d, ResolveOptions{Globals: globals})
	require.NoError(t, err)
	assert.Equal(t, "echo common alice", cfg.Command)

	globals.Set("user", "bob")
	cfg, err = Resolve("t", "/p", d, ResolveOptions{Globals: globals})
	require.NoError(t, err)
	assert.Equal(t, "echo common bob", cfg.Command)
}

func TestResolve_Shell(t *testing.T) {
	tests := []struct {
		name   string
		common string
		task   string
		want   string
	}{
		{"common template", `:shell "nix-shell --run '%s'"`, "", "nix-shell --run 'make all'"},
		{"task overrides common", `:shell "nix-shell --run '%s'"`, `:shell "bash -lc '%s; echo done'"`, "bash -lc 'make all; echo done'"},
		{"variables in template", `:shell "%wrap '%s'" :variables (("wrap" . "direnv exec ."))`, "", "direnv exec . 'make all'"},
		{"escaped marker kept literal", `:shell "printf '\\%s|%s'"`, "", "printf '%s|make all'"},
		{"missing marker appends", `:shell "time"`, "", "time make all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `((common ` + tt.common + `) (tasks (t :command ("make" "all") ` + tt.task + `)))`
			cfg, err := Resolve("t", "/p", mustParse(t, src), ResolveOptions{})
			require.NoError(t, err)
			require.NotNil(t, cfg.Shell)
			assert.Equal(t, "make all", cfg.Command)
			assert.Equal(t, tt.want, cfg.CommandLine())
		})
	}
}

func TestResolve_UnknownTask(t *testing.T) {
	d := mustParse(t, `((tasks (build :command ("make")) (test :command ("make" "test"))))`)

	_, err := Resolve("nonexistent", "/p", d, ResolveOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTask))

	var unknown *UnknownTaskError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nonexistent", unknown.ID)
	assert.Equal(t, []string{"build", "test"}, unknown.Known)
	assert.Contains(t, err.Error(), "build, test")
}

func TestShell_String(t *testing.T) {
	s := Shell{Prefix: "sh -c '", Suffix: "'"}
	assert.Equal(t, "sh -c '%s'", s.String())
	assert.Equal(t, "sh -c 'ls'", s.Wrap("ls"))
}
