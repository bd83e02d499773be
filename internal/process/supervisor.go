package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dshills/tasklist/internal/logger"
)

// Sentinel errors.
var (
	// ErrProcessNotFound is returned when no live process has the run ID.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSupervisorShutdown is returned by Start once Shutdown has begun.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")
)

// Supervisor tracks the live child processes of task runs, keyed by run ID,
// and tears them down on shutdown.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu    sync.RWMutex
	procs map[string]*Process

	closed atomic.Bool
	onExit func(p *Process)
	log    logger.Logger
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithProcessExitCallback sets a callback run once a process has been reaped
// and before it is forgotten.
func WithProcessExitCallback(fn func(p *Process)) SupervisorOption {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

// WithLogger sets the supervisor logger.
func WithLogger(l logger.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.log = l
	}
}

// NewSupervisor creates a supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		procs: make(map[string]*Process),
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches cmd for the run id on the named surface. The caller wires
// the command's standard streams first. A command that fails to launch is
// not tracked.
func (s *Supervisor) Start(id, surface string, cmd *exec.Cmd) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Checked under mu so Shutdown never misses a process.
	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}
	if _, dup := s.procs[id]; dup {
		return nil, fmt.Errorf("run %s already has a process", id)
	}

	p := NewProcess(id, surface, cmd)
	if err := p.start(); err != nil {
		return nil, err
	}
	s.procs[id] = p
	s.log.Debug("process launched", "run", id, "surface", surface, "pid", p.PID())

	go s.reap(p)
	return p, nil
}

// reap waits for p, runs the exit callback and forgets p.
func (s *Supervisor) reap(p *Process) {
	<-p.Done()

	if s.onExit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("process exit callback panicked", "run", p.ID, "panic", r)
				}
			}()
			s.onExit(p)
		}()
	}

	s.mu.Lock()
	delete(s.procs, p.ID)
	s.mu.Unlock()
}

// Get returns the live process of a run, or nil.
func (s *Supervisor) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.procs[id]
}

// List returns every tracked process.
func (s *Supervisor) List() []*Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Process, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p)
	}
	return out
}

// Count returns the number of tracked processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.procs)
}

// Signal sends sig to the process group of a run. A process that already
// exited but has not been reaped yet is left alone.
func (s *Supervisor) Signal(id string, sig syscall.Signal) error {
	p := s.Get(id)
	if p == nil {
		return ErrProcessNotFound
	}
	if !p.IsRunning() {
		return nil
	}
	return p.Signal(sig)
}

// Shutdown stops accepting new processes, sends SIGTERM to every live one
// and sends SIGKILL to those still running after timeout. It returns once
// every process has been reaped. Later calls return immediately.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	procs := s.List()
	if len(procs) == 0 {
		return
	}

	s.log.Debug("terminating processes", "count", len(procs))
	for _, p := range procs {
		if p.IsRunning() {
			_ = p.Terminate()
		}
	}

	exited := make(chan struct{})
	go func() {
		for _, p := range procs {
			<-p.Done()
		}
		close(exited)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		for _, p := range procs {
			if p.IsRunning() {
				s.log.Warn("killing process after shutdown timeout", "run", p.ID, "surface", p.Name)
				_ = p.Kill()
			}
		}
		<-exited
	}

	for s.Count() > 0 {
		time.Sleep(time.Millisecond)
	}
}
