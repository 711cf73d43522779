package generator

import (
	"testing"

	"github.com/c360studio/greeting-e2e/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerStub struct{ llm.Provider }

func (providerStub) Name() string { return "stub" }

func TestConfig_Validate(t *testing.T) {
	hot := 3.0

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "llm default", mutate: func(c *Config) { c.Kind = KindLLM }},
		{name: "unknown kind", mutate: func(c *Config) { c.Kind = "markov" }, wantErr: "unknown kind"},
		{
			name:    "llm without endpoints",
			mutate:  func(c *Config) { c.Kind = KindLLM; c.LLM.Endpoints = nil },
			wantErr: "at least one endpoint",
		},
		{
			name:    "llm endpoint without model",
			mutate:  func(c *Config) { c.Kind = KindLLM; c.LLM.Endpoints = []llm.Endpoint{{Provider: "ollama"}} },
			wantErr: "model is required",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Kind = KindLLM; c.LLM.Temperature = &hot },
			wantErr: "temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("local default", func(t *testing.T) {
		g, err := New(DefaultConfig(), nil)
		require.NoError(t, err)
		assert.IsType(t, &Local{}, g)
	})

	t.Run("local fixtures", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Local.Fixtures = []string{"testdata/fixtures/single.json"}
		g, err := New(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, g.(*Local).Len())
	})

	t.Run("llm", func(t *testing.T) {
		llm.RegisterProvider(providerStub{})
		cfg := DefaultConfig()
		cfg.Kind = KindLLM
		cfg.LLM.Endpoints = []llm.Endpoint{{Provider: "stub", Model: "m"}}
		g, err := New(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &LLM{}, g)
	})

	t.Run("llm unknown provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Kind = KindLLM
		cfg.LLM.Endpoints = []llm.Endpoint{{Provider: "nope", Model: "m"}}
		_, err := New(cfg, nil)
		assert.ErrorContains(t, err, "unknown provider")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := New(Config{Kind: "bogus"}, nil)
		assert.Error(t, err)
	})
}
