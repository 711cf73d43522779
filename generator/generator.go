// Package generator produces synthetic greeting payloads, either from local
// data or from a chat model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/greeting-e2e/greeting"
	"github.com/c360studio/greeting-e2e/llm"
)

// ErrGeneration is wrapped by every payload generation failure.
var ErrGeneration = errors.New("message generation failed")

// Generator produces one payload per call. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context) (greeting.Payload, error)
}

// Kind selects a Generator implementation.
type Kind string

const (
	KindLocal Kind = "local"
	KindLLM   Kind = "llm"
)

// Config selects and configures the payload generator.
type Config struct {
	Kind  Kind        `yaml:"kind" json:"kind"`
	Local LocalConfig `yaml:"local" json:"local"`
	LLM   LLMConfig   `yaml:"llm" json:"llm"`
}

// LocalConfig configures the local generator. With no fixtures, every
// payload is the same built-in greeting.
type LocalConfig struct {
	// Fixtures are doublestar glob patterns of JSON files holding one payload
	// object or an array of them.
	Fixtures []string `yaml:"fixtures,omitempty" json:"fixtures,omitempty"`
}

// LLMConfig configures the chat model generator.
type LLMConfig struct {
	// Endpoints are tried in order until one succeeds.
	Endpoints []llm.Endpoint `yaml:"endpoints" json:"endpoints"`

	// Temperature is sent as-is; nil leaves it to the model.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Timeout bounds one payload including retries and fallback.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Prompt overrides DefaultPrompt.
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

// DefaultConfig returns a local generator with the built-in payload.
func DefaultConfig() Config {
	return Config{
		Kind: KindLocal,
		LLM: LLMConfig{
			Endpoints: []llm.Endpoint{
				{Provider: "ollama", URL: "http://localhost:11434/v1", Model: "tinyllama"},
			},
			MaxTokens: 256,
			Timeout:   60 * time.Second,
		},
	}
}

// Validate checks the generator configuration.
func (c Config) Validate() error {
	switch c.Kind {
	case KindLocal:
		return nil
	case KindLLM:
		if len(c.LLM.Endpoints) == 0 {
			return fmt.Errorf("llm.endpoints: at least one endpoint is required")
		}
		for i, ep := range c.LLM.Endpoints {
			if ep.Provider == "" {
				return fmt.Errorf("llm.endpoints[%d].provider is required", i)
			}
			if ep.Model == "" {
				return fmt.Errorf("llm.endpoints[%d].model is required", i)
			}
		}
		if c.LLM.MaxTokens < 0 {
			return fmt.Errorf("llm.max_tokens must be non-negative")
		}
		if c.LLM.Timeout < 0 {
			return fmt.Errorf("llm.timeout must be non-negative")
		}
		if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
			return fmt.Errorf("llm.temperature must be between 0 and 2")
		}
		return nil
	default:
		return fmt.Errorf("kind: unknown kind %q (want %q or %q)", c.Kind, KindLocal, KindLLM)
	}
}

// New builds the generator selected by cfg.Kind. Extra client options are
// passed to the LLM client.
func New(cfg Config, logger *slog.Logger, opts ...llm.ClientOption) (Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generator config: %w", err)
	}

	switch cfg.Kind {
	case KindLLM:
		for _, ep := range cfg.LLM.Endpoints {
			if llm.GetProvider(ep.Provider) == nil {
				return nil, fmt.Errorf("generator config: llm: unknown provider %q (registered: %v)", ep.Provider, llm.ListProviders())
			}
		}
		client := llm.NewClient(cfg.LLM.Endpoints, append([]llm.ClientOption{llm.WithLogger(logger)}, opts...)...)
		logger.Info("Using LLM message generator", "endpoints", len(cfg.LLM.Endpoints), "primary", cfg.LLM.Endpoints[0].String())
		return NewLLM(client, cfg.LLM, logger), nil
	default:
		if len(cfg.Local.Fixtures) == 0 {
			logger.Info("Using built-in message generator")
			return NewLocal(), nil
		}
		local, err := LoadFixtures(cfg.Local.Fixtures)
		if err != nil {
			return nil, err
		}
		logger.Info("Using fixture message generator", "payloads", local.Len())
		return local, nil
	}
}
