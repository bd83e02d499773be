package project

import (
	"errors"
	"fmt"
)

// Standard errors returned by the project package.
var (
	// ErrNoProjectFound indicates no candidate root holds a descriptor.
	ErrNoProjectFound = errors.New("no project found")

	// ErrDescriptorMissing indicates the root has no .tasklist file.
	ErrDescriptorMissing = errors.New("descriptor missing")

	// ErrDescriptorParse indicates the .tasklist file is malformed.
	ErrDescriptorParse = errors.New("descriptor parse error")

	// ErrStateLocked indicates another process holds the session state lock.
	ErrStateLocked = errors.New("session state is locked")
)

// DescriptorError reports a descriptor failure for a specific root.
type DescriptorError struct {
	Root string // Project root
	Path string // Descriptor file path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *DescriptorError) Error() string {
	return fmt.Sprintf("project %s: %s: %v", e.Root, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *DescriptorError) Unwrap() error {
	return e.Err
}

// parseError builds an error that matches ErrDescriptorParse and keeps the
// underlying cause reachable through errors.As.
func parseError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrDescriptorParse}, args...)...)
}

// IsConfigError reports whether err means the project cannot be used for
// task operations.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNoProjectFound) ||
		errors.Is(err, ErrDescriptorMissing) ||
		errors.Is(err, ErrDescriptorParse)
}
