package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/google/shlex"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// ParseError reports a malformed config file.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Loader reads the layered configuration.
type Loader struct {
	fs       afero.Fs
	path     string
	validate *validator.Validate
}

// Option configures a Loader.
type Option func(*Loader)

// WithFS sets the file system the config and dotenv files are read from.
func WithFS(fs afero.Fs) Option {
	return func(l *Loader) {
		l.fs = fs
	}
}

// WithPath sets the config file path. A missing file is not an error.
func WithPath(path string) Option {
	return func(l *Loader) {
		l.path = path
	}
}

// NewLoader creates a loader for DefaultPath on the OS file system.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		fs:       afero.NewOsFs(),
		path:     DefaultPath(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads defaults, the config file and the environment, then validates
// the result.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	data, err := l.readFile()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, fmt.Errorf("apply %s: %w", l.path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if err := l.mergeEnvFile(&cfg); err != nil {
		return nil, err
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its constraints.
func (l *Loader) Validate(cfg *Config) error {
	if err := l.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// readFile parses the TOML config file into a map. A missing file yields nil.
func (l *Loader) readFile() (map[string]any, error) {
	if l.path == "" {
		return nil, nil
	}
	raw, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", l.path, err)
	}

	var data map[string]any
	if err := toml.Unmarshal(raw, &data); err != nil {
		perr := &ParseError{Path: l.path, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}
	return data, nil
}

// mergeEnvFile adds the dotenv entries to the global variables. Variables set
// by the config file or environment win.
func (l *Loader) mergeEnvFile(cfg *Config) error {
	if cfg.EnvFile == "" {
		return nil
	}
	f, err := l.fs.Open(cfg.EnvFile)
	if err != nil {
		return fmt.Errorf("open env_file: %w", err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse env_file %s: %w", cfg.EnvFile, err)
	}

	if cfg.Variables == nil {
		cfg.Variables = make(map[string]string, len(vars))
	}
	if err := mergo.Merge(&cfg.Variables, vars); err != nil {
		return fmt.Errorf("merge env_file variables: %w", err)
	}
	return nil
}

// envKeys maps TASKLIST_* suffixes to config paths.
var envKeys = map[string]string{
	"DEFAULT_ROOT": "default_root",
	"DISPLAY":      "display",
	"SHELL":        "shell",
	"ENV_FILE":     "env_file",
	"STATE_FILE":   "state_file",
	"MARKERS":      "markers",
	"FOLLOW":       "follow",
	"KILL_TIMEOUT": "kill_timeout",
	"WAIT_DELAY":   "wait_delay",
	"LOG_LEVEL":    "log.level",
	"LOG_JSON":     "log.json",
}

// varPrefix introduces a global variable: TASKLIST_VAR_name=value.
const varPrefix = "VAR_"

// transformEnv maps an environment variable to a config path. Unknown
// variables map to "" and are skipped.
func transformEnv(key, value string) (string, any) {
	name := strings.TrimPrefix(key, EnvPrefix)

	if v, ok := strings.CutPrefix(name, varPrefix); ok {
		if v == "" {
			return "", nil
		}
		return "variables." + v, value
	}

	path, ok := envKeys[name]
	if !ok {
		return "", nil
	}
	if path == "shell" {
		// Shell argv is written the way it would be typed.
		argv, err := shlex.Split(value)
		if err != nil {
			return "", nil
		}
		if len(argv) == 0 {
			return path, []string{}
		}
		return path, argv
	}
	return path, value
}

// rawMap adapts an already parsed map to koanf.Provider.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap does not support ReadBytes")
}
