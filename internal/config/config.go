// Package config loads tasklist's own settings.
//
// Settings are layered, later layers winning:
//
//  1. built-in defaults (Default)
//  2. the TOML config file, by default $XDG_CONFIG_HOME/tasklist/config.toml
//  3. TASKLIST_* environment variables
//
// An optional dotenv file (env_file) contributes global variables that the
// config file has not set.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/tasklist/internal/project"
)

// AppName names the config and state directories.
const AppName = "tasklist"

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TASKLIST_"

// Config is the complete tool configuration.
type Config struct {
	// DefaultRoot is the catch-all project root used when neither the
	// override nor the locator yields a project.
	DefaultRoot string `koanf:"default_root"`

	// Display is the process-wide default display mode.
	Display string `koanf:"display" validate:"oneof=split frame none"`

	// Shell is the argv prefix the final command line is appended to. Empty
	// runs the command line directly.
	Shell []string `koanf:"shell" validate:"dive,required"`

	// Variables is the process-wide global variable mapping.
	Variables map[string]string `koanf:"variables"`

	// EnvFile is a dotenv file whose entries become global variables.
	EnvFile string `koanf:"env_file"`

	// StateFile persists the session override and default roots.
	StateFile string `koanf:"state_file" validate:"required"`

	// Markers are the file names the project locator looks for.
	Markers []string `koanf:"markers" validate:"min=1,dive,required"`

	// Follow streams surface output to stdout while a task runs.
	Follow bool `koanf:"follow"`

	// KillTimeout is how long shutdown waits after SIGTERM before SIGKILL.
	KillTimeout time.Duration `koanf:"kill_timeout" validate:"gt=0"`

	// WaitDelay bounds output draining after a task's process exits.
	WaitDelay time.Duration `koanf:"wait_delay" validate:"gte=0"`

	Log LogConfig `koanf:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Display:     "split",
		Shell:       []string{"/bin/sh", "-c"},
		Variables:   map[string]string{},
		StateFile:   filepath.Join(baseDir(), AppName, "session.toml"),
		Markers:     append([]string(nil), project.DefaultMarkers...),
		Follow:      true,
		KillTimeout: 5 * time.Second,
		WaitDelay:   2 * time.Second,
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(baseDir(), AppName, "config.toml")
}

func baseDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
