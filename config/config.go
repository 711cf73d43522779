// Package config provides configuration loading and management for greeting-e2e.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/c360studio/greeting-e2e/generator"
	"gopkg.in/yaml.v3"
)

var bucketNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Config represents the complete greeting-e2e configuration
type Config struct {
	Receiver   ServiceConfig    `yaml:"receiver" json:"receiver"`
	LogAPI     ServiceConfig    `yaml:"log_api" json:"log_api"`
	HTTP       HTTPConfig       `yaml:"http" json:"http"`
	Run        RunConfig        `yaml:"run" json:"run"`
	Dispatch   DispatchConfig   `yaml:"dispatch" json:"dispatch"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Verify     VerifyConfig     `yaml:"verify" json:"verify"`
	Generator  generator.Config `yaml:"generator" json:"generator"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Report     ReportConfig     `yaml:"report" json:"report"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// ServiceConfig locates one service under test
type ServiceConfig struct {
	// URL is the base URL, e.g. http://localhost:8080
	URL string `yaml:"url" json:"url"`
}

// HTTPConfig configures the HTTP clients shared by both services
type HTTPConfig struct {
	// Timeout applies to every request, in every phase
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RunConfig configures one verification run
type RunConfig struct {
	// Iterations is the number of greetings to generate and send
	Iterations int `yaml:"iterations" json:"iterations"`
	// FailOnSendError makes any send failure fail the run
	FailOnSendError bool `yaml:"fail_on_send_error" json:"fail_on_send_error"`
}

// DispatchConfig configures the send phase
type DispatchConfig struct {
	// Concurrency is the number of concurrent senders (1 = strictly sequential)
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// GenerationConfig configures the generation phase
type GenerationConfig struct {
	// Concurrency is the number of concurrent generator calls
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// VerifyConfig configures the poll-and-match loop
type VerifyConfig struct {
	// PageLimit is the maximum number of log entries per poll
	PageLimit int `yaml:"page_limit" json:"page_limit"`
	// Timeout bounds the whole verification loop
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// PollInterval is the sleep after an empty page
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level" json:"level"`
	// Format is text or json
	Format string `yaml:"format" json:"format"`
	// File, when set, receives a copy of the log with size-based rotation
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	// MaxAgeDays is the retention of rotated files
	MaxAgeDays int `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
	// Compress gzips rotated files
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// ReportConfig configures result output and archiving
type ReportConfig struct {
	// Format is text or json
	Format string `yaml:"format" json:"format"`
	// Progress shows terminal progress bars (text format only)
	Progress bool `yaml:"progress" json:"progress"`
	// NATS publishes each result when URL is set
	NATS NATSConfig `yaml:"nats" json:"nats"`
	// HistoryDB is a SQLite file that archives every run (empty = disabled)
	HistoryDB string `yaml:"history_db,omitempty" json:"history_db,omitempty"`
}

// NATSConfig configures result publication
type NATSConfig struct {
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Subject string `yaml:"subject" json:"subject"`
	// KVBucket, when set, also stores the latest result per receiver in this
	// JetStream KV bucket
	KVBucket string `yaml:"kv_bucket,omitempty" json:"kv_bucket,omitempty"`
}

// MetricsConfig configures Prometheus metrics export
type MetricsConfig struct {
	// PushgatewayURL receives run metrics when set
	PushgatewayURL string `yaml:"pushgateway_url,omitempty" json:"pushgateway_url,omitempty"`
	// Job is the Pushgateway job label
	Job string `yaml:"job" json:"job"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Receiver: ServiceConfig{URL: "http://localhost:8080"},
		LogAPI:   ServiceConfig{URL: "http://localhost:8080"},
		HTTP:     HTTPConfig{Timeout: 30 * time.Second},
		Run: RunConfig{
			Iterations:      10,
			FailOnSendError: false,
		},
		Dispatch:   DispatchConfig{Concurrency: 1},
		Generation: GenerationConfig{Concurrency: 1},
		Verify: VerifyConfig{
			PageLimit:    100,
			Timeout:      30 * time.Second,
			PollInterval: time.Second,
		},
		Generator: generator.DefaultConfig(),
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Report: ReportConfig{
			Format:   "text",
			Progress: true,
			NATS:     NATSConfig{Subject: "greeting.e2e.results"},
		},
		Metrics: MetricsConfig{Job: "greeting_e2e"},
	}
}

// Validate checks that the configuration is valid. All problems are reported
// together as a joined error of *ValidationError.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if err := validateServiceURL(c.Receiver.URL); err != nil {
		add("receiver.url", "%v", err)
	}
	if err := validateServiceURL(c.LogAPI.URL); err != nil {
		add("log_api.url", "%v", err)
	}
	if c.HTTP.Timeout <= 0 {
		add("http.timeout", "must be positive")
	}
	if c.Run.Iterations < 1 {
		add("run.iterations", "must be at least 1")
	}
	if c.Dispatch.Concurrency < 1 {
		add("dispatch.concurrency", "must be at least 1")
	}
	if c.Generation.Concurrency < 1 {
		add("generation.concurrency", "must be at least 1")
	}
	if c.Verify.PageLimit < 1 {
		add("verify.page_limit", "must be at least 1")
	}
	if c.Verify.Timeout <= 0 {
		add("verify.timeout", "must be positive")
	}
	if c.Verify.PollInterval <= 0 {
		add("verify.poll_interval", "must be positive")
	}
	if err := c.Generator.Validate(); err != nil {
		add("generator", "%v", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "unknown level %q (want debug, info, warn or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("logging.format", "unknown format %q (want text or json)", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		add("logging", "rotation limits must not be negative")
	}

	if c.Report.Format != "text" && c.Report.Format != "json" {
		add("report.format", "unknown format %q (want text or json)", c.Report.Format)
	}
	if c.Report.NATS.URL != "" && c.Report.NATS.Subject == "" {
		add("report.nats.subject", "is required when report.nats.url is set")
	}
	if b := c.Report.NATS.KVBucket; b != "" && !bucketNameRe.MatchString(b) {
		add("report.nats.kv_bucket", "invalid bucket name %q (want letters, digits, '-' or '_')", b)
	}
	if c.Metrics.PushgatewayURL != "" {
		if err := validateServiceURL(c.Metrics.PushgatewayURL); err != nil {
			add("metrics.pushgateway_url", "%v", err)
		}
		if c.Metrics.Job == "" {
			add("metrics.job", "is required when metrics.pushgateway_url is set")
		}
	}

	return errors.Join(errs...)
}

func validateServiceURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
// Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "read", Err: err}
	}

	config := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Path: path, Op: "parse", Err: err}
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &Error{Path: path, Op: "create directory", Err: err}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return &Error{Path: path, Op: "marshal", Err: err}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return &Error{Path: path, Op: "write", Err: err}
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Only the fields that can be overridden from the
// environment or the command line are considered.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Receiver.URL != "" {
		c.Receiver.URL = other.Receiver.URL
	}
	if other.LogAPI.URL != "" {
		c.LogAPI.URL = other.LogAPI.URL
	}
	if other.HTTP.Timeout != 0 {
		c.HTTP.Timeout = other.HTTP.Timeout
	}
	if other.Run.Iterations != 0 {
		c.Run.Iterations = other.Run.Iterations
	}
	if other.Run.FailOnSendError {
		c.Run.FailOnSendError = true
	}
	if other.Verify.Timeout != 0 {
		c.Verify.Timeout = other.Verify.Timeout
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Report.Format != "" {
		c.Report.Format = other.Report.Format
	}
}
