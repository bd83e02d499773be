package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited on its own.
	StateExited
	// StateKilled indicates the process was terminated by a signal.
	StateKilled
	// StateFailed indicates the process could not be started.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Status is the final outcome of a process.
type Status struct {
	// State is StateExited, StateKilled or StateFailed.
	State State

	// Code is the exit code; -1 when killed by a signal or never started.
	Code int

	// Signal is the terminating signal when State is StateKilled.
	Signal syscall.Signal

	// Err is the error returned by Wait or Start, if any.
	Err error

	// Elapsed is the wall-clock time from spawn to termination.
	Elapsed time.Duration
}

// Success reports whether the process exited with code 0.
func (s Status) Success() bool {
	return s.State == StateExited && s.Code == 0
}

// ShellCode maps the status to a shell-style exit code. Signal deaths map to
// 128+signal and a process that never ran to 127.
func (s Status) ShellCode() int {
	switch s.State {
	case StateKilled:
		return 128 + int(s.Signal)
	case StateFailed:
		return 127
	default:
		return s.Code
	}
}

// String describes the status in the form shown at the end of task output.
func (s Status) String() string {
	switch s.State {
	case StateExited:
		if s.Code == 0 {
			return "finished"
		}
		return fmt.Sprintf("exited abnormally with code %d", s.Code)
	case StateKilled:
		return fmt.Sprintf("killed by signal %d (%s)", int(s.Signal), s.Signal)
	case StateFailed:
		return fmt.Sprintf("failed to start: %v", s.Err)
	default:
		return s.State.String()
	}
}

// Process represents a managed child process.
//
// Process wraps an exec.Cmd with lifecycle management and exit tracking.
// It is safe for concurrent use.
type Process struct {
	// ID is the unique identifier for this process.
	ID string

	// Name is the output surface that owns the process.
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Started is the time the process was started.
	Started time.Time

	// done is closed when the process exits.
	done chan struct{}

	// state tracks the current process state.
	state atomic.Int32

	// status is the final outcome, valid after done is closed.
	status Status

	// mu protects status.
	mu sync.RWMutex

	// waitOnce ensures Wait is only called once.
	waitOnce sync.Once
}

// NewProcess creates a new Process wrapping the given command.
//
// The command should not be started before calling NewProcess.
// Use Supervisor.Start to launch it with tracking.
func NewProcess(id, name string, cmd *exec.Cmd) *Process {
	p := &Process{
		ID:   id,
		Name: name,
		Cmd:  cmd,
		done: make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	return p
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// Status returns the final outcome. It is only meaningful after Done closes.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// PID returns the process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Signal sends a signal to the process group.
// Returns an error if the process is not running.
func (p *Process) Signal(sig syscall.Signal) error {
	if !p.IsRunning() {
		return fmt.Errorf("process not running: %w", ErrProcessNotStarted)
	}

	if p.Cmd.Process == nil {
		return ErrProcessNotStarted
	}

	// Negative PID addresses the whole group.
	if err := syscall.Kill(-p.Cmd.Process.Pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal %s: %w", sig, err)
	}
	return nil
}

// Kill sends SIGKILL to the process group.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Terminate sends SIGTERM to the process group.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// start starts the process in its own process group and begins tracking it.
// This is called by the Supervisor.
func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}

	if p.Cmd.SysProcAttr == nil {
		p.Cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	p.Cmd.SysProcAttr.Setpgid = true

	p.Started = time.Now()
	if err := p.Cmd.Start(); err != nil {
		p.finish(Status{State: StateFailed, Code: -1, Err: err})
		return fmt.Errorf("start process: %w", err)
	}

	p.state.Store(int32(StateRunning))

	go p.waitLoop()

	return nil
}

// waitLoop waits for the process to exit and records the status.
func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.Cmd.Wait()

		st := Status{State: StateExited, Err: err}

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				st.Code = exitErr.ExitCode()
				if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
					st.State = StateKilled
					st.Signal = ws.Signal()
					st.Code = -1
				}
			} else if p.Cmd.ProcessState != nil {
				// I/O copy errors after a normal exit.
				st.Code = p.Cmd.ProcessState.ExitCode()
			} else {
				st.Code = -1
			}
		}

		p.finish(st)
	})
}

// finish records the final status and closes done.
func (p *Process) finish(st Status) {
	st.Elapsed = time.Since(p.Started)

	p.mu.Lock()
	p.status = st
	p.mu.Unlock()

	p.state.Store(int32(st.State))
	close(p.done)
}

// Sentinel errors for process package.
var (
	// ErrProcessNotStarted is returned when operations require a started process.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted is returned when trying to start an already running process.
	ErrProcessAlreadyStarted = errors.New("process already started")
)
