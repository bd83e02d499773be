package project

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tasklist/internal/sexp"
	"github.com/dshills/tasklist/internal/subst"
)

const fullDescriptor = `
;; demo project
((common :cwd "build/"
         :env ("CC=clang" "CFLAGS=-O2")
         :window "*%project*"
         :shell "nix-shell --run '%s'"
         :variables (("project" . "demo") (target "debug")))
 (tasks
  (build :name "Build %1"
         :command ("make" "%1")
         :default-args ("all"))
  ("run tests" :command ("go" "test" "./...")
               :cwd "/abs/path"
               :env ("GOFLAGS=-count=1")
               :window "tests"
               :shell nil
               :display none)))
`

func TestParseDescriptor_Full(t *testing.T) {
	d, err := ParseDescriptor([]byte(fullDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "build/", d.Common.Cwd)
	assert.Equal(t, []string{"CC=clang", "CFLAGS=-O2"}, d.Common.Env)
	assert.Equal(t, "*%project*", d.Common.Window)
	assert.Equal(t, "nix-shell --run '%s'", d.Common.Shell)
	assert.Equal(t, subst.Vars{{Name: "project", Value: "demo"}, {Name: "target", Value: "debug"}}, d.Common.Variables)

	assert.Equal(t, []string{"build", "run tests"}, d.TaskIDs())

	build, ok := d.Task("build")
	require.True(t, ok)
	assert.Equal(t, "Build %1", build.Name)
	assert.Equal(t, []string{"make", "%1"}, build.Command)
	assert.Equal(t, []string{"all"}, build.DefaultArgs)
	assert.Equal(t, DisplayDefault, build.Display)

	tests, ok := d.Task("run tests")
	require.True(t, ok)
	assert.Equal(t, "/abs/path", tests.Cwd)
	assert.Equal(t, []string{"GOFLAGS=-count=1"}, tests.Env)
	assert.Equal(t, "tests", tests.Window)
	assert.Empty(t, tests.Shell)
	assert.Equal(t, DisplayNone, tests.Display)

	_, ok = d.Task("missing")
	assert.False(t, ok)
}

func TestParseDescriptor_Forms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"single form", `((tasks (build :command ("echo" "hi"))))`},
		{"top-level sections", `(common :cwd "x") (tasks (build :command ("echo" "hi")))`},
		{"dotted sections", `((common . (:cwd "x")) (tasks . ((build :command ("echo" "hi")))))`},
		{"quoted", `'((tasks (build :command ("echo" "hi"))))`},
		{"command as string", `((tasks (build :command "echo hi")))`},
		{"unknown keys ignored", `((tasks (build :command ("echo" "hi") :frobnicate t)))`},
		{"nested common plist", `((common (:cwd "x")) (tasks (build :command ("echo" "hi"))))`},
		{"nested task plist", `((tasks (build (:command ("echo" "hi") :cwd "y"))))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDescriptor([]byte(tt.src))
			require.NoError(t, err)
			require.Len(t, d.Tasks, 1)
			assert.Equal(t, "build", d.Tasks[0].ID)
			assert.NotEmpty(t, d.Tasks[0].Command)
		})
	}
}

func TestParseDescriptor_NestedPlist(t *testing.T) {
	d, err := ParseDescriptor([]byte(`
((common (:cwd "out/" :env ("A=1") :variables (("v" . "1"))))
 (tasks (build (:name "Build" :command ("make")))))`))
	require.NoError(t, err)

	assert.Equal(t, "out/", d.Common.Cwd)
	assert.Equal(t, []string{"A=1"}, d.Common.Env)
	assert.Equal(t, subst.Vars{{Name: "v", Value: "1"}}, d.Common.Variables)

	build, ok := d.Task("build")
	require.True(t, ok)
	assert.Equal(t, "Build", build.Name)
	assert.Equal(t, []string{"make"}, build.Command)
}

func TestParseDescriptor_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `((tasks (build :command ("echo"`},
		{"no tasks section", `((common :cwd "x"))`},
		{"unknown section", `((jobs (build :command ("x"))))`},
		{"task without command", `((tasks (build :name "b")))`},
		{"duplicate task", `((tasks (a :command ("x")) (a :command ("y"))))`},
		{"bad display", `((tasks (a :command ("x") :display popup)))`},
		{"missing value", `((tasks (a :command)))`},
		{"non keyword", `((tasks (a command ("x"))))`},
		{"command of lists", `((tasks (a :command (("x")))))`},
		{"bad variables", `((common :variables ("a")) (tasks))`},
		{"variable pair too long", `((common :variables (("a" "b" "c"))) (tasks))`},
		{"list for scalar", `((tasks (a :command ("x") :cwd ("a" "b"))))`},
		{"atom section", `(tasks) foo`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptor([]byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDescriptorParse), "got %v", err)
		})
	}
}

func TestParseDescriptor_SyntaxErrorIsReachable(t *testing.T) {
	_, err := ParseDescriptor([]byte("((tasks"))
	var se *sexp.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)
}

func TestParseDescriptor_EmptyTasks(t *testing.T) {
	d, err := ParseDescriptor([]byte(`((tasks))`))
	require.NoError(t, err)
	assert.Empty(t, d.Tasks)
}

func TestParseDisplay(t *testing.T) {
	for _, s := range []string{"", "split", "frame", "none"} {
		d, err := ParseDisplay(s)
		require.NoError(t, err)
		assert.Equal(t, Display(s), d)
	}
	_, err := ParseDisplay("window")
	assert.Error(t, err)
}
