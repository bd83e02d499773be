package project

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/dshills/tasklist/internal/logger"
)

// Tier names the resolution step that produced a root.
type Tier string

const (
	// TierOverride is the explicit session override root.
	TierOverride Tier = "override"
	// TierLocator is the project locator's answer.
	TierLocator Tier = "locator"
	// TierDefault is the configured default root.
	TierDefault Tier = "default"
)

// Store resolves project roots and reads descriptors.
//
// Descriptors are read from storage on every Load so edits on disk are
// always reflected; nothing is cached between calls.
type Store struct {
	fs      afero.Fs
	locator Locator
	log     logger.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFS sets the file system descriptors are read from.
func WithFS(fs afero.Fs) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithLocator sets the project locator consulted in the second tier.
func WithLocator(l Locator) StoreOption {
	return func(s *Store) {
		s.locator = l
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates a descriptor store. By default it reads the OS file
// system and has no locator.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		fs:  afero.NewOsFs(),
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FS returns the store's file system.
func (s *Store) FS() afero.Fs {
	return s.fs
}

// DescriptorPath returns the descriptor location for root.
func DescriptorPath(root string) string {
	return filepath.Join(root, DescriptorFile)
}

// HasDescriptor reports whether root holds a regular descriptor file.
func (s *Store) HasDescriptor(root string) bool {
	if root == "" {
		return false
	}
	info, err := s.fs.Stat(DescriptorPath(root))
	return err == nil && !info.IsDir()
}

// ResolveRoot picks the project root for a session and working directory.
func (s *Store) ResolveRoot(sess *Session, workDir string) (string, error) {
	root, _, err := s.ResolveRootTier(sess, workDir)
	return root, err
}

// ResolveRootTier is ResolveRoot that also reports which tier matched.
func (s *Store) ResolveRootTier(sess *Session, workDir string) (string, Tier, error) {
	if sess == nil {
		sess = &Session{}
	}

	override, def := sess.OverrideRoot(), sess.EffectiveDefaultRoot()

	if s.HasDescriptor(override) {
		s.log.Debug("project root resolved", "tier", TierOverride, "root", override)
		return override, TierOverride, nil
	} else if override != "" {
		s.log.Warn("override root has no descriptor", "root", override)
	}

	if s.locator != nil && workDir != "" {
		located, err := s.locator.Locate(workDir)
		switch {
		case err != nil:
			s.log.Debug("project locator found nothing", "dir", workDir, "err", err)
		case s.HasDescriptor(located):
			s.log.Debug("project root resolved", "tier", TierLocator, "root", located)
			return located, TierLocator, nil
		default:
			s.log.Debug("located root has no descriptor", "root", located)
		}
	}

	if s.HasDescriptor(def) {
		s.log.Debug("project root resolved", "tier", TierDefault, "root", def)
		return def, TierDefault, nil
	}

	return "", "", ErrNoProjectFound
}

// Load reads and parses the descriptor at root.
func (s *Store) Load(root string) (*Descriptor, error) {
	path := DescriptorPath(root)

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &DescriptorError{Root: root, Path: path, Err: ErrDescriptorMissing}
		}
		return nil, &DescriptorError{Root: root, Path: path, Err: err}
	}

	d, err := ParseDescriptor(data)
	if err != nil {
		return nil, &DescriptorError{Root: root, Path: path, Err: err}
	}

	s.log.Debug("descriptor loaded", "path", path, "tasks", len(d.Tasks))
	return d, nil
}

// NormalizeRoot makes a user-supplied root absolute while keeping a trailing
// separator, which root-relative cwd values are appended to.
func NormalizeRoot(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		abs += string(filepath.Separator)
	}
	return abs, nil
}
