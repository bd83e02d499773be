package task

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/shlex"
	"github.com/google/uuid"

	"github.com/dshills/tasklist/internal/logger"
	"github.com/dshills/tasklist/internal/process"
)

// Executor errors.
var (
	// ErrAlreadyRunning indicates the target surface already owns a live
	// process. Nothing was spawned.
	ErrAlreadyRunning = errors.New("task already running")

	// ErrCwdMissing indicates the working directory does not exist and was
	// not created.
	ErrCwdMissing = errors.New("working directory does not exist")
)

// DefaultSystemShell runs the final command line.
var DefaultSystemShell = []string{"/bin/sh", "-c"}

// DefaultWaitDelay bounds how long output is drained after the process
// exits while descendants still hold its pipes.
const DefaultWaitDelay = 2 * time.Second

// ConfirmFunc decides whether a missing working directory may be created.
type ConfirmFunc func(dir string) (bool, error)

// CompletionHook receives the final status of a run exactly once, before the
// timing summary is written to the surface.
type CompletionHook func(r *Run, status process.Status)

// Run is a single invocation of a task on a surface.
type Run struct {
	ID      string
	Surface *Surface
	Config  *Config
	Started time.Time

	done   chan struct{}
	mu     sync.Mutex
	status process.Status

	// launched is set once the process is tracked by the supervisor.
	// Signals sent before that are held in pending.
	launched bool
	pending  syscall.Signal
}

// Done returns a channel that is closed once the run's termination has been
// fully processed and the surface is idle again.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Status returns the final status. It is only meaningful after Done closes.
func (r *Run) Status() process.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Executor spawns resolved tasks on output surfaces, allowing at most one
// live process per surface.
type Executor struct {
	registry   *Registry
	supervisor *process.Supervisor
	shell      []string
	waitDelay  time.Duration
	log        logger.Logger

	mu     sync.Mutex
	active map[string]*Run
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRegistry sets the surface registry.
func WithRegistry(r *Registry) ExecutorOption {
	return func(e *Executor) {
		e.registry = r
	}
}

// WithSystemShell sets the argv prefix used to run the final command line.
// An empty argv runs the command line directly after shell-style splitting.
func WithSystemShell(argv []string) ExecutorOption {
	return func(e *Executor) {
		e.shell = argv
	}
}

// WithWaitDelay sets exec.Cmd.WaitDelay for spawned processes.
func WithWaitDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.waitDelay = d
	}
}

// WithLogger sets the executor logger.
func WithLogger(l logger.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = l
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		shell:     DefaultSystemShell,
		waitDelay: DefaultWaitDelay,
		log:       logger.Discard(),
		active:    make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	e.supervisor = process.NewSupervisor(
		process.WithLogger(e.log),
		process.WithProcessExitCallback(e.reaped),
	)
	return e
}

// Registry returns the executor's surface registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

type invokeOptions struct {
	hook     CompletionHook
	confirm  ConfirmFunc
	consumer Consumer
}

// InvokeOption configures a single invocation.
type InvokeOption func(*invokeOptions)

// WithCompletionHook sets the hook invoked when the run terminates.
func WithCompletionHook(h CompletionHook) InvokeOption {
	return func(o *invokeOptions) {
		o.hook = h
	}
}

// WithCwdConfirm sets the decision used when the working directory is
// missing. Without it a missing directory fails with ErrCwdMissing.
func WithCwdConfirm(fn ConfirmFunc) InvokeOption {
	return func(o *invokeOptions) {
		o.confirm = fn
	}
}

// WithRunConsumer attaches c to the surface for this run only. It sees the
// run's first byte and is removed once the run has completed.
func WithRunConsumer(c Consumer) InvokeOption {
	return func(o *invokeOptions) {
		o.consumer = c
	}
}

// Invoke spawns cfg on the named surface and returns once the process is
// launched. Output and termination arrive asynchronously through the
// surface's consumers and the returned Run.
//
// Invoke fails with ErrAlreadyRunning when the surface owns a live process.
// A command that cannot be spawned is not an error here: the run terminates
// with a failed status instead.
func (e *Executor) Invoke(surface string, cfg *Config, opts ...InvokeOption) (*Run, error) {
	var o invokeOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := e.registry.Surface(surface)
	if s.State() == SurfaceRunning {
		e.log.Info("surface busy", "surface", surface, "task", cfg.ID)
		return nil, fmt.Errorf("%w: surface %q", ErrAlreadyRunning, surface)
	}

	if err := ensureCwd(cfg.Cwd, o.confirm); err != nil {
		return nil, err
	}

	argv, err := e.argv(cfg.CommandLine())
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", cfg.ID, err)
	}

	run := &Run{
		ID:      uuid.NewString(),
		Surface: s,
		Config:  cfg,
		done:    make(chan struct{}),
	}
	if err := s.claim(run); err != nil {
		e.log.Info("surface busy", "surface", surface, "task", cfg.ID)
		return nil, fmt.Errorf("%w: surface %q", err, surface)
	}
	if o.consumer != nil {
		s.AddConsumer(o.consumer)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cfg.Cwd
	cmd.Env = buildEnv(os.Environ(), cfg.Env)
	cmd.Stdout = s
	cmd.Stderr = s
	cmd.WaitDelay = e.waitDelay

	run.Started = time.Now()
	proc, err := e.supervisor.Start(run.ID, surface, cmd)
	if errors.Is(err, process.ErrSupervisorShutdown) {
		s.unclaim(run)
		if o.consumer != nil {
			s.RemoveConsumer(o.consumer)
		}
		return nil, err
	}

	e.mu.Lock()
	e.active[run.ID] = run
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("spawn failed", "surface", surface, "task", cfg.ID, "error", err)
		st := process.Status{
			State:   process.StateFailed,
			Code:    -1,
			Err:     err,
			Elapsed: time.Since(run.Started),
		}
		go e.complete(run, st, o)
		return run, nil
	}

	s.attach(proc)
	e.log.Info("process started", "surface", surface, "task", cfg.ID, "pid", proc.PID(), "cwd", cfg.Cwd)

	e.launched(run)

	go func() {
		<-proc.Done()
		e.complete(run, proc.Status(), o)
	}()

	return run, nil
}

// complete runs termination bookkeeping: hook, timing summary, then the
// surface returns to idle.
func (e *Executor) complete(run *Run, st process.Status, o invokeOptions) {
	if hook := o.hook; hook != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("completion hook panicked", "surface", run.Surface.Name(), "panic", r)
				}
			}()
			hook(run, st)
		}()
	}

	_, _ = run.Surface.Write([]byte(summary(run, st, time.Now())))

	run.mu.Lock()
	run.status = st
	run.mu.Unlock()

	if o.consumer != nil {
		run.Surface.release(st, o.consumer)
	} else {
		run.Surface.release(st)
	}

	e.mu.Lock()
	delete(e.active, run.ID)
	e.mu.Unlock()

	e.log.Info("process exited",
		"surface", run.Surface.Name(),
		"task", run.Config.ID,
		"status", st.String(),
		"elapsed", st.Elapsed.Round(time.Millisecond),
	)
	close(run.done)
}

// summary is the footer appended to a surface when its run ends.
func summary(run *Run, st process.Status, end time.Time) string {
	return fmt.Sprintf("\nTask %s %s at %s, elapsed %s\n",
		run.Config.Name, st, end.Format("Mon Jan 2 15:04:05"), st.Elapsed.Round(time.Millisecond))
}

// Kill terminates the process owned by the named surface.
func (e *Executor) Kill(surface string) error {
	return e.Signal(surface, syscall.SIGTERM)
}

// Signal sends sig to the process group owned by the named surface. A run
// that has claimed the surface but not launched yet receives sig as soon as
// its process starts.
func (e *Executor) Signal(surface string, sig syscall.Signal) error {
	s, ok := e.registry.Get(surface)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSurfaceNotFound, surface)
	}
	run := s.current()
	if run == nil {
		return fmt.Errorf("%w: %q", ErrNotRunning, surface)
	}

	run.mu.Lock()
	if !run.launched {
		run.pending = sig
		run.mu.Unlock()
		e.log.Info("holding signal until launch", "surface", surface, "signal", sig.String())
		return nil
	}
	run.mu.Unlock()

	e.log.Info("signalling process", "surface", surface, "run", run.ID, "signal", sig.String())
	err := e.supervisor.Signal(run.ID, sig)
	if errors.Is(err, process.ErrProcessNotFound) {
		return fmt.Errorf("%w: %q", ErrNotRunning, surface)
	}
	return err
}

// launched marks run as tracked by the supervisor and delivers a signal
// that arrived while it was still starting.
func (e *Executor) launched(run *Run) {
	run.mu.Lock()
	run.launched = true
	pending := run.pending
	run.mu.Unlock()

	if pending == 0 {
		return
	}
	e.log.Info("delivering held signal", "surface", run.Surface.Name(), "signal", pending.String())
	if err := e.supervisor.Signal(run.ID, pending); err != nil {
		e.log.Warn("signal failed", "surface", run.Surface.Name(), "error", err)
	}
}

// reaped is called by the supervisor once a process has been waited for.
func (e *Executor) reaped(p *process.Process) {
	e.log.Debug("process reaped", "surface", p.Name, "pid", p.PID(), "state", p.State().String())
}

// Active returns the number of runs whose termination is still pending.
func (e *Executor) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Shutdown terminates every live process, killing those still running after
// timeout, and waits until each run has been completed.
func (e *Executor) Shutdown(timeout time.Duration) {
	e.supervisor.Shutdown(timeout)

	e.mu.Lock()
	runs := make([]*Run, 0, len(e.active))
	for _, r := range e.active {
		runs = append(runs, r)
	}
	e.mu.Unlock()

	for _, r := range runs {
		<-r.Done()
	}
}

// argv builds the process argv for a final command line.
func (e *Executor) argv(line string) ([]string, error) {
	if len(e.shell) > 0 {
		argv := make([]string, 0, len(e.shell)+1)
		argv = append(argv, e.shell...)
		return append(argv, line), nil
	}
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("split command line: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}
	return argv, nil
}

// buildEnv appends the task environment to base. exec.Cmd keeps the last
// value of a duplicated key, so entries are appended in reverse to let the
// earliest task entry win.
func buildEnv(base, extra []string) []string {
	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)
	for i := len(extra) - 1; i >= 0; i-- {
		env = append(env, extra[i])
	}
	return env
}

// ensureCwd makes sure dir exists, asking confirm before creating it.
func ensureCwd(dir string, confirm ConfirmFunc) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrCwdMissing, dir)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat working directory: %w", err)
	}

	if confirm == nil {
		return fmt.Errorf("%w: %s", ErrCwdMissing, dir)
	}
	ok, err := confirm(dir)
	if err != nil {
		return fmt.Errorf("confirm directory creation: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s (creation declined)", ErrCwdMissing, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	return nil
}
