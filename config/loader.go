package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Environment variables that override file settings.
const (
	EnvReceiverURL = "GREETING_E2E_RECEIVER_URL"
	EnvLogAPIURL   = "GREETING_E2E_LOG_API_URL"
	EnvIterations  = "GREETING_E2E_ITERATIONS"
	EnvLogLevel    = "GREETING_E2E_LOG_LEVEL"
	EnvTimeout     = "GREETING_E2E_VERIFY_TIMEOUT"
)

// DefaultConfigFile is used when no path is given.
const DefaultConfigFile = "greeting-e2e.yaml"

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Config file at path (a template with the defaults is written if missing)
// 3. Environment variables
// 4. overrides, typically from command line flags
func (l *Loader) Load(path string, overrides *Config) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	config, err := LoadFromFile(path)
	switch {
	case err == nil:
		l.logger.Debug("Loaded config file", slog.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		config = DefaultConfig()
		if err := config.SaveToFile(path); err != nil {
			return nil, err
		}
		l.logger.Info("Config file not found, created template with defaults", slog.String("path", path))
	default:
		return nil, err
	}

	env, err := l.fromEnv()
	if err != nil {
		return nil, err
	}
	config.Merge(env)
	config.Merge(overrides)

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// EnsureFile writes a template with the defaults to path unless a file already
// exists there. It reports whether a file was created.
func (l *Loader) EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return false, err
	}

	l.logger.Info("Created config template", slog.String("path", path))
	return true, nil
}

// fromEnv collects overrides from the environment.
func (l *Loader) fromEnv() (*Config, error) {
	env := &Config{}

	if v := os.Getenv(EnvReceiverURL); v != "" {
		env.Receiver.URL = v
	}
	if v := os.Getenv(EnvLogAPIURL); v != "" {
		env.LogAPI.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		env.Logging.Level = v
	}
	if v := os.Getenv(EnvIterations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ValidationError{Field: EnvIterations, Message: "must be an integer, got " + strconv.Quote(v)}
		}
		if n < 1 {
			return nil, &ValidationError{Field: EnvIterations, Message: "must be at least 1, got " + v}
		}
		env.Run.Iterations = n
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, &ValidationError{Field: EnvTimeout, Message: "must be a duration, got " + strconv.Quote(v)}
		}
		env.Verify.Timeout = d
	}

	for _, name := range []string{EnvReceiverURL, EnvLogAPIURL, EnvLogLevel, EnvIterations, EnvTimeout} {
		if _, ok := os.LookupEnv(name); ok {
			l.logger.Debug("Config overridden from environment", slog.String("variable", name))
		}
	}
	return env, nil
}
