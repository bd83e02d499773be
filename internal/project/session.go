package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// Session is the runtime configuration that steers root resolution. It is
// passed explicitly to resolution calls; sets are visible to every later
// resolution.
type Session struct {
	mu           sync.RWMutex
	overrideRoot string
	defaultRoot  string

	// configuredRoot is the default from the tool configuration. It is
	// never persisted and yields to defaultRoot.
	configuredRoot string
}

// NewSession creates a session with the given override and default roots.
func NewSession(overrideRoot, defaultRoot string) *Session {
	return &Session{overrideRoot: overrideRoot, defaultRoot: defaultRoot}
}

// OverrideRoot returns the pinned root, or "".
func (s *Session) OverrideRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrideRoot
}

// SetOverrideRoot pins a root; "" clears it.
func (s *Session) SetOverrideRoot(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideRoot = path
}

// DefaultRoot returns the fallback root, or "".
func (s *Session) DefaultRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultRoot
}

// SetDefaultRoot sets the fallback root; "" clears it.
func (s *Session) SetDefaultRoot(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultRoot = path
}

// SetConfiguredDefault sets the default root taken from configuration.
func (s *Session) SetConfiguredDefault(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configuredRoot = path
}

// EffectiveDefaultRoot returns the default root set at runtime or, failing
// that, the configured one.
func (s *Session) EffectiveDefaultRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.defaultRoot != "" {
		return s.defaultRoot
	}
	return s.configuredRoot
}

// sessionFile is the persisted form of a Session.
type sessionFile struct {
	OverrideRoot string `toml:"override_root,omitempty"`
	DefaultRoot  string `toml:"default_root,omitempty"`
}

// SessionStore persists sessions as TOML.
type SessionStore struct {
	path        string
	lockTimeout time.Duration
}

// NewSessionStore creates a store for the state file at path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path, lockTimeout: 2 * time.Second}
}

// Path returns the state file location.
func (ss *SessionStore) Path() string {
	return ss.path
}

// Load reads the state file. A missing file yields an empty session.
func (ss *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(ss.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("reading session state %s: %w", ss.path, err)
	}

	var f sessionFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing session state %s: %w", ss.path, err)
	}
	return NewSession(f.OverrideRoot, f.DefaultRoot), nil
}

// Save writes sess under an exclusive lock, replacing the file atomically.
func (ss *SessionStore) Save(ctx context.Context, sess *Session) error {
	dir := filepath.Dir(ss.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	lock := flock.New(ss.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, ss.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("locking session state: %w", err)
	}
	if !locked {
		return ErrStateLocked
	}
	defer func() { _ = lock.Unlock() }()

	data, err := toml.Marshal(sessionFile{
		OverrideRoot: sess.OverrideRoot(),
		DefaultRoot:  sess.DefaultRoot(),
	})
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing session state: %w", err)
	}
	if err := os.Rename(tmpName, ss.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing session state: %w", err)
	}
	return nil
}
