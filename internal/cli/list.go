package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/tasklist/internal/app"
)

func newListCmd(g *globals) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "list [ROOT]",
		Short: "List the tasks of a project",
		Long: `List prints the identifier and display name of every task in descriptor order.
Without ROOT the project is resolved from the session and working directory.
With --watch the list is printed again whenever the descriptor changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}

			a, err := g.open()
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			if err := g.printTasks(a, root); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return g.watchTasks(cmd.Context(), a, root)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "print the list again when the descriptor changes")
	return cmd
}

func (g *globals) printTasks(a *app.Application, root string) error {
	entries, err := a.ListTasks(root)
	if err != nil {
		return err
	}
	return writeTasks(g.out, entries)
}

func writeTasks(w io.Writer, entries []app.TaskEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.ID, e.Name)
	}
	return tw.Flush()
}

// watchTasks reprints the list until interrupted. A descriptor that fails to
// parse mid-edit is reported and the watch continues.
func (g *globals) watchTasks(ctx context.Context, a *app.Application, root string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := a.WatchTasks(ctx, root, func() {
		fmt.Fprintln(g.out)
		if err := g.printTasks(a, root); err != nil {
			g.log.Warn("descriptor changed", "error", err)
			fmt.Fprintf(g.errOut, "Error: %v\n", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
