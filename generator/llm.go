package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360studio/greeting-e2e/greeting"
	"github.com/c360studio/greeting-e2e/llm"
)

// DefaultPrompt asks for one greeting as a JSON object.
const DefaultPrompt = `Write a JSON object with the following properties:
{"to": "", "from": "", "heading": "", "message": ""}
Constraints:
- every property has at least 1 character
- "to" and "from" are random person names of at most 20 characters
- "heading" is a random heading of at most 20 characters
- "message" is a random message of at most 50 characters
- values do not repeat and contain no special characters
Respond with the single JSON object only.`

const systemPrompt = "You generate test data. You answer with JSON only."

// Completer is the subset of *llm.Client used by LLM.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLM generates payloads by prompting a chat model.
type LLM struct {
	client Completer
	cfg    LLMConfig
	logger *slog.Logger
}

// NewLLM creates a chat model generator.
func NewLLM(client Completer, cfg LLMConfig, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &LLM{client: client, cfg: cfg, logger: logger}
}

// Generate asks the model for one payload and sanitizes it.
func (g *LLM) Generate(ctx context.Context) (greeting.Payload, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: g.cfg.Prompt},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return greeting.Payload{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		g.logger.Debug("Model response held no JSON object", "request_id", resp.RequestID, "content", resp.Content)
		return greeting.Payload{}, fmt.Errorf("%w: no JSON object in model response", ErrGeneration)
	}

	var payload greeting.Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		g.logger.Debug("Model response JSON rejected", "request_id", resp.RequestID, "json", raw)
		return greeting.Payload{}, fmt.Errorf("%w: decode model JSON: %w", ErrGeneration, err)
	}

	return Sanitize(payload)
}
