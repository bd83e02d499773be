package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/tasklist/internal/app"
	"github.com/dshills/tasklist/internal/project"
	"github.com/dshills/tasklist/internal/task"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		vars     []string
		unset    []string
		noFollow bool
	)

	cmd := &cobra.Command{
		Use:   "run TASK... [-- ARG...]",
		Short: "Run tasks and wait for them to finish",
		Long: `Run starts each named task on its output surface and waits for all of them.

Arguments after -- replace the tasks' default arguments by position. A single
task's output is streamed as it arrives; with several tasks each surface is
printed once its task ends. Interrupting tasklist terminates every running task.

The exit status is the first failing task's exit code, 2 when a task cannot be
resolved, and 3 when its surface is already busy.`,
		Example: `  tasklist run build
  tasklist run test -- ./internal/...
  tasklist run lint vet --var target=release
  tasklist run deploy --unset-var region`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, taskArgs := splitAtDash(cmd, args)
			if len(ids) == 0 {
				return errors.New("run requires at least one task")
			}
			return g.run(cmd.Context(), ids, taskArgs, unset, vars, !noFollow)
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "set a global variable as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&unset, "unset-var", nil, "drop a configured global variable (repeatable)")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "do not print task output")
	return cmd
}

// splitAtDash separates positional args before "--" from those after it.
func splitAtDash(cmd *cobra.Command, args []string) ([]string, []string) {
	n := cmd.ArgsLenAtDash()
	if n < 0 {
		return args, nil
	}
	return args[:n], args[n:]
}

func (g *globals) run(ctx context.Context, ids, taskArgs, unset, vars []string, follow bool) (err error) {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer closeApp(ctx, a, &err)

	for _, name := range unset {
		a.UnsetVariable(name)
	}
	for _, v := range vars {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --var %q (want name=value)", v)
		}
		a.SetVariable(name, value)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	follow = follow && a.Config().Follow
	stream := follow && len(ids) == 1

	var (
		runs []*task.Run
		errs []error
	)
	for _, id := range ids {
		run, err := g.start(a, id, taskArgs, stream)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		runs = append(runs, run)
	}

	var failed *ExitError
	interrupted := false
	for _, run := range runs {
		select {
		case <-run.Done():
		case <-ctx.Done():
			if !interrupted {
				interrupted = true
				g.interrupt(a)
			}
			<-run.Done()
		}

		if follow && !stream && run.Config.Display != project.DisplayNone {
			if out, err := a.SurfaceOutput(run.Surface.Name()); err == nil {
				_, _ = g.out.Write(out)
			}
		}

		if code := run.Status().ShellCode(); code != 0 && failed == nil {
			failed = &ExitError{Task: run.Config.ID, Code: code}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if failed != nil {
		return failed
	}
	return nil
}

// start invokes one task. With stream set the task's output is copied to
// stdout as it arrives unless the task's display is none.
func (g *globals) start(a *app.Application, id string, args []string, stream bool) (*task.Run, error) {
	var opts []task.InvokeOption
	if stream {
		cfg, err := a.Show(id, args)
		if err != nil {
			return nil, err
		}
		if cfg.Display != project.DisplayNone {
			opts = append(opts, task.WithRunConsumer(&task.WriterConsumer{W: g.out}))
		}
	}

	run, err := a.RunTask(id, args, opts...)
	if err != nil {
		return nil, err
	}
	g.log.Debug("task started", "task", id, "surface", run.Surface.Name())
	return run, nil
}

// interrupt stops every running task. Tasks get SIGTERM and, once the kill
// timeout passes, SIGKILL. A second interrupt kills them at once.
func (g *globals) interrupt(a *app.Application) {
	g.log.Info("interrupted, terminating tasks", "timeout", a.Config().KillTimeout)

	again := make(chan os.Signal, 1)
	signal.Notify(again, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(again)

	stopped := make(chan struct{})
	go func() {
		a.StopTasks()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-again:
		g.log.Warn("interrupted again, killing tasks")
		g.signalAll(a, syscall.SIGKILL)
		<-stopped
	}
}

// signalAll sends sig to every surface that still owns a process.
func (g *globals) signalAll(a *app.Application, sig syscall.Signal) {
	for _, info := range a.ListSurfaces() {
		if info.State != task.SurfaceRunning {
			continue
		}
		if err := a.SignalSurface(info.Name, sig); err != nil && !errors.Is(err, task.ErrNotRunning) {
			g.log.Warn("signal failed", "surface", info.Name, "error", err)
		}
	}
}
