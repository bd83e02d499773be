package cli

import (
	"errors"
	"fmt"

	"github.com/dshills/tasklist/internal/project"
	"github.com/dshills/tasklist/internal/task"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitConflict = 3
)

// ExitError carries a task's own exit code out of a command. The task's
// surface footer already reported it, so Execute prints nothing more.
type ExitError struct {
	Task string
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("task %s exited with code %d", e.Task, e.Code)
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case project.IsConfigError(err),
		errors.Is(err, task.ErrUnknownTask),
		errors.Is(err, task.ErrCwdMissing):
		return ExitConfig
	case errors.Is(err, task.ErrAlreadyRunning):
		return ExitConflict
	default:
		return ExitFailure
	}
}
