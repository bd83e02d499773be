// Package app wires the descriptor store, resolver and executor together and
// exposes the operations the command line offers.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dshills/tasklist/internal/config"
	"github.com/dshills/tasklist/internal/logger"
	"github.com/dshills/tasklist/internal/project"
	"github.com/dshills/tasklist/internal/subst"
	"github.com/dshills/tasklist/internal/task"
)

// ErrClosed indicates the application has been shut down.
var ErrClosed = errors.New("application closed")

// Application is the task runner bound to one session.
type Application struct {
	cfg      *config.Config
	store    *project.Store
	session  *project.Session
	sessions *project.SessionStore
	globals  *subst.Globals
	executor *task.Executor
	confirm  task.ConfirmFunc
	display  project.Display
	workDir  string
	log      logger.Logger

	// dirty is set when the session changed since it was loaded.
	dirty  atomic.Bool
	closed atomic.Bool
	once   sync.Once
}

// Options configures an Application. Zero fields get production defaults
// derived from Config.
type Options struct {
	// Config is the tool configuration; nil means config.Default().
	Config *config.Config

	// Store resolves roots and loads descriptors.
	Store *project.Store

	// Sessions persists the session. Nil keeps the session in memory only.
	Sessions *project.SessionStore

	// Session overrides the session read from Sessions.
	Session *project.Session

	// Executor runs tasks.
	Executor *task.Executor

	// ConfirmCwd decides whether a missing working directory is created.
	ConfirmCwd task.ConfirmFunc

	// WorkDir is where the project locator starts; "" means os.Getwd.
	WorkDir string

	Logger logger.Logger
}

// New creates an Application.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	display, err := project.ParseDisplay(cfg.Display)
	if err != nil {
		return nil, err
	}

	a := &Application{
		cfg:      cfg,
		store:    opts.Store,
		session:  opts.Session,
		sessions: opts.Sessions,
		globals:  subst.NewGlobals(cfg.Variables),
		executor: opts.Executor,
		confirm:  opts.ConfirmCwd,
		display:  display,
		workDir:  opts.WorkDir,
		log:      log,
	}

	if a.store == nil {
		a.store = project.NewStore(
			project.WithLocator(project.NewMarkerLocator(cfg.Markers...)),
			project.WithLogger(log.With("component", "store")),
		)
	}

	if a.executor == nil {
		a.executor = task.NewExecutor(
			task.WithSystemShell(cfg.Shell),
			task.WithWaitDelay(cfg.WaitDelay),
			task.WithLogger(log.With("component", "executor")),
		)
	}

	if a.workDir == "" {
		if a.workDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
	}

	if a.session == nil {
		a.session, err = a.loadSession()
		if err != nil {
			return nil, err
		}
	}
	// The configured default is never persisted.
	a.session.SetConfiguredDefault(cfg.DefaultRoot)

	return a, nil
}

// loadSession reads the persisted session.
func (a *Application) loadSession() (*project.Session, error) {
	if a.sessions == nil {
		return &project.Session{}, nil
	}
	return a.sessions.Load()
}

// Config returns the configuration in use.
func (a *Application) Config() *config.Config {
	return a.cfg
}

// Session returns the session steering root resolution.
func (a *Application) Session() *project.Session {
	return a.session
}

// Executor returns the task executor.
func (a *Application) Executor() *task.Executor {
	return a.executor
}

// ProjectInfo describes the resolved project.
type ProjectInfo struct {
	Root       string       `yaml:"root"`
	Tier       project.Tier `yaml:"tier"`
	Descriptor string       `yaml:"descriptor"`
	Override   string       `yaml:"override_root,omitempty"`
	Default    string       `yaml:"default_root,omitempty"`
}

// ProjectInfo resolves the current project root.
func (a *Application) ProjectInfo() (*ProjectInfo, error) {
	root, tier, err := a.store.ResolveRootTier(a.session, a.workDir)
	if err != nil {
		return nil, err
	}
	return &ProjectInfo{
		Root:       root,
		Tier:       tier,
		Descriptor: project.DescriptorPath(root),
		Override:   a.session.OverrideRoot(),
		Default:    a.session.EffectiveDefaultRoot(),
	}, nil
}

// TaskEntry is one row of ListTasks.
type TaskEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ListTasks lists the tasks of root in descriptor order. An empty root is
// resolved first.
func (a *Application) ListTasks(root string) ([]TaskEntry, error) {
	root, desc, err := a.load(root)
	if err != nil {
		return nil, err
	}

	entries := make([]TaskEntry, 0, len(desc.Tasks))
	for _, def := range desc.Tasks {
		name := def.ID
		if cfg, err := task.Resolve(def.ID, root, desc, a.resolveOptions(nil)); err == nil {
			name = cfg.Name
		}
		entries = append(entries, TaskEntry{ID: def.ID, Name: name})
	}
	return entries, nil
}

// Show resolves a task without running it.
func (a *Application) Show(taskID string, args []string) (*task.Config, error) {
	root, desc, err := a.load("")
	if err != nil {
		return nil, err
	}
	return task.Resolve(taskID, root, desc, a.resolveOptions(args))
}

// RunTask resolves taskID against the current project and starts it on its
// output surface. It returns once the process is launched.
func (a *Application) RunTask(taskID string, args []string, opts ...task.InvokeOption) (*task.Run, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}

	cfg, err := a.Show(taskID, args)
	if err != nil {
		return nil, err
	}
	a.log.Debug("task resolved", "task", cfg.ID, "surface", cfg.Window, "command", cfg.CommandLine(), "cwd", cfg.Cwd)

	invokeOpts := make([]task.InvokeOption, 0, len(opts)+1)
	if a.confirm != nil {
		invokeOpts = append(invokeOpts, task.WithCwdConfirm(a.confirm))
	}
	invokeOpts = append(invokeOpts, opts...)

	return a.executor.Invoke(cfg.Window, cfg, invokeOpts...)
}

// SetOverrideRoot pins the project root; "" clears it.
func (a *Application) SetOverrideRoot(path string) error {
	root, err := project.NormalizeRoot(path)
	if err != nil {
		return err
	}
	a.session.SetOverrideRoot(root)
	a.dirty.Store(true)
	a.log.Info("override root set", "root", root)
	return nil
}

// SetDefaultRoot sets the fallback project root; "" clears it.
func (a *Application) SetDefaultRoot(path string) error {
	root, err := project.NormalizeRoot(path)
	if err != nil {
		return err
	}
	a.session.SetDefaultRoot(root)
	a.dirty.Store(true)
	a.log.Info("default root set", "root", root)
	return nil
}

// SetVariable sets a process-wide global variable.
func (a *Application) SetVariable(name, value string) {
	a.globals.Set(name, value)
}

// UnsetVariable removes a process-wide global variable.
func (a *Application) UnsetVariable(name string) {
	a.globals.Delete(name)
}

// Variables returns the global variables sorted by name.
func (a *Application) Variables() subst.Vars {
	return a.globals.Snapshot()
}

// KillSurface terminates the process running on a surface.
func (a *Application) KillSurface(name string) error {
	return a.executor.Kill(name)
}

// SignalSurface sends sig to the process group running on a surface.
func (a *Application) SignalSurface(name string, sig syscall.Signal) error {
	return a.executor.Signal(name, sig)
}

// StopTasks terminates every running task, killing those still alive after
// the configured kill timeout, and waits for them. No task can be started
// afterwards.
func (a *Application) StopTasks() {
	a.closed.Store(true)
	a.executor.Shutdown(a.killTimeout())
}

// ListSurfaces describes every surface used in this session.
func (a *Application) ListSurfaces() []task.Info {
	return a.executor.Registry().List()
}

// SurfaceOutput returns the buffered output of a surface.
func (a *Application) SurfaceOutput(name string) ([]byte, error) {
	s, ok := a.executor.Registry().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", task.ErrSurfaceNotFound, name)
	}
	return s.Output(), nil
}

// WatchTasks calls onChange whenever the descriptor of root changes, until
// ctx is done. An empty root is resolved first.
func (a *Application) WatchTasks(ctx context.Context, root string, onChange func()) error {
	if root == "" {
		var err error
		if root, err = a.store.ResolveRoot(a.session, a.workDir); err != nil {
			return err
		}
	}
	ctx = logger.ContextWithLogger(ctx, a.log.With("component", "watch"))
	return project.Watch(ctx, root, project.DefaultDebounce, onChange)
}

// Close stops every running task and persists the session if it changed.
// It is safe to call more than once.
func (a *Application) Close(ctx context.Context) error {
	var err error
	a.once.Do(func() {
		a.closed.Store(true)
		a.executor.Shutdown(a.killTimeout())
		err = a.saveSession(ctx)
	})
	return err
}

func (a *Application) killTimeout() time.Duration {
	if a.cfg.KillTimeout > 0 {
		return a.cfg.KillTimeout
	}
	return config.Default().KillTimeout
}

func (a *Application) saveSession(ctx context.Context) error {
	if a.sessions == nil || !a.dirty.Load() {
		return nil
	}
	if err := a.sessions.Save(ctx, a.session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	a.dirty.Store(false)
	a.log.Debug("session saved", "path", a.sessions.Path())
	return nil
}

// load resolves root when empty and reads its descriptor.
func (a *Application) load(root string) (string, *project.Descriptor, error) {
	if root == "" {
		var err error
		if root, err = a.store.ResolveRoot(a.session, a.workDir); err != nil {
			return "", nil, err
		}
	}
	desc, err := a.store.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, desc, nil
}

func (a *Application) resolveOptions(args []string) task.ResolveOptions {
	return task.ResolveOptions{
		Globals:        a.globals,
		DefaultDisplay: a.display,
		Args:           args,
	}
}
