package project

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Locator finds the project root for a starting directory.
type Locator interface {
	// Locate returns the root for dir, or an error when there is none.
	Locate(dir string) (string, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(dir string) (string, error)

// Locate implements Locator.
func (f LocatorFunc) Locate(dir string) (string, error) {
	return f(dir)
}

// DefaultMarkers are the entries that identify a project root, checked in
// order at each level.
var DefaultMarkers = []string{DescriptorFile, ".git", ".hg", ".svn", "go.mod", ".projectile"}

// MarkerLocator walks up from the starting directory until it finds a
// directory that contains one of its markers.
type MarkerLocator struct {
	fs      afero.Fs
	markers []string
}

// NewMarkerLocator creates a locator over the OS file system. With no
// markers, DefaultMarkers is used.
func NewMarkerLocator(markers ...string) *MarkerLocator {
	return NewMarkerLocatorWithFS(afero.NewOsFs(), markers...)
}

// NewMarkerLocatorWithFS creates a locator over a custom file system.
func NewMarkerLocatorWithFS(fs afero.Fs, markers ...string) *MarkerLocator {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &MarkerLocator{fs: fs, markers: markers}
}

// Locate implements Locator.
func (l *MarkerLocator) Locate(dir string) (string, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}

	// Walk up the directory tree
	current := absPath
	for {
		for _, m := range l.markers {
			if _, err := l.fs.Stat(filepath.Join(current, m)); err == nil {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%s: %w", absPath, ErrNoProjectFound)
		}
		current = parent
	}
}
