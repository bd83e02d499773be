package project

import (
	"fmt"

	"github.com/dshills/tasklist/internal/subst"
)

// DescriptorFile is the name of the descriptor at a project root.
const DescriptorFile = ".tasklist"

// Display is where a task's output surface should be shown.
type Display string

const (
	// DisplayDefault defers to the process-wide default.
	DisplayDefault Display = ""
	// DisplaySplit shows the surface in a split of the current window.
	DisplaySplit Display = "split"
	// DisplayFrame shows the surface in its own frame.
	DisplayFrame Display = "frame"
	// DisplayNone keeps the surface hidden.
	DisplayNone Display = "none"
)

// ParseDisplay converts a descriptor or configuration value to a Display.
func ParseDisplay(s string) (Display, error) {
	switch d := Display(s); d {
	case DisplayDefault, DisplaySplit, DisplayFrame, DisplayNone:
		return d, nil
	default:
		return DisplayDefault, fmt.Errorf("invalid display %q (must be split, frame or none)", s)
	}
}

// Common holds the defaults shared by every task of a project.
type Common struct {
	Cwd       string
	Env       []string
	Window    string
	Shell     string
	Variables subst.Vars
}

// TaskDef is a task as written in the descriptor. Empty fields are absent.
type TaskDef struct {
	ID          string
	Name        string
	Command     []string
	Cwd         string
	Env         []string
	Window      string
	Shell       string
	Display     Display
	DefaultArgs []string
}

// Descriptor is a parsed .tasklist document.
type Descriptor struct {
	Common Common

	// Tasks are kept in document order.
	Tasks []*TaskDef
}

// Task returns the task with the given identifier.
func (d *Descriptor) Task(id string) (*TaskDef, bool) {
	for _, t := range d.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// TaskIDs returns the task identifiers in document order.
func (d *Descriptor) TaskIDs() []string {
	ids := make([]string, len(d.Tasks))
	for i, t := range d.Tasks {
		ids[i] = t.ID
	}
	return ids
}
