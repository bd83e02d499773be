package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/tasklist/internal/app"
)

func newRootsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root",
		Short: "Show or change the session's override and default project roots",
		Long: `The override root, when it holds a descriptor, wins over the project found
from the working directory. The default root is used when neither yields one.
Both are kept in the session state file.`,
	}

	cmd.AddCommand(
		newRootSetCmd(g, "override", "Pin the project root for every command", (*app.Application).SetOverrideRoot,
			func(a *app.Application) string { return a.Session().OverrideRoot() }),
		newRootSetCmd(g, "default", "Set the fallback project root", (*app.Application).SetDefaultRoot,
			func(a *app.Application) string { return a.Session().DefaultRoot() }),
	)
	return cmd
}

func newRootSetCmd(
	g *globals,
	name, short string,
	set func(*app.Application, string) error,
	get func(*app.Application) string,
) *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   name + " [PATH]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if unset && len(args) > 0 {
				return errors.New("--clear takes no path")
			}

			a, err := g.open()
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			switch {
			case unset:
				return set(a, "")
			case len(args) == 1:
				return set(a, args[0])
			default:
				fmt.Fprintln(g.out, get(a))
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&unset, "clear", false, "remove the "+name+" root")
	return cmd
}
