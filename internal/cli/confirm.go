package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/dshills/tasklist/internal/task"
)

// confirmFunc decides how a missing working directory is handled. With
// --create-cwd it is always created; otherwise the user is asked when stdin
// is a terminal.
func (g *globals) confirmFunc() task.ConfirmFunc {
	if g.createCwd {
		return func(string) (bool, error) { return true, nil }
	}
	f, ok := g.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return func(dir string) (bool, error) {
		return askCreate(f, g.errOut, dir)
	}
}

func askCreate(in io.Reader, out io.Writer, dir string) (bool, error) {
	create := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Working directory does not exist").
			Description(fmt.Sprintf("Create %s?", dir)).
			Affirmative("Create").
			Negative("Abort").
			Value(&create),
	)).WithInput(in).WithOutput(out)

	if err := form.Run(); err != nil {
		return false, err
	}
	return create, nil
}
