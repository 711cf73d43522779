package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/c360studio/greeting-e2e/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_BuildURL(t *testing.T) {
	p := &OllamaProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "http://localhost:11434/v1/chat/completions",
		},
		{
			name:    "custom base URL",
			baseURL: "http://myserver:8080/v1",
			want:    "http://myserver:8080/v1/chat/completions",
		},
		{
			name:    "trailing slash handled",
			baseURL: "http://localhost:11434/v1/",
			want:    "http://localhost:11434/v1/chat/completions",
		},
		{
			name:    "already has endpoint",
			baseURL: "http://localhost:11434/v1/chat/completions",
			want:    "http://localhost:11434/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestOllamaProvider_BuildRequestBody(t *testing.T) {
	p := &OllamaProvider{}

	temp := 0.7
	body, err := p.BuildRequestBody("llama3.2", llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "Answer in JSON."},
			{Role: "user", Content: "Write a greeting"},
		},
		Temperature: &temp,
		MaxTokens:   256,
		JSON:        true,
	})
	require.NoError(t, err)

	var req chatRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "llama3.2", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.7, *req.Temperature, 0.001)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 256, *req.MaxTokens)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
}

func TestOllamaProvider_BuildRequestBody_OmitsDefaults(t *testing.T) {
	p := &OllamaProvider{}

	body, err := p.BuildRequestBody("llama3.2", llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.NotContains(t, raw, "temperature")
	assert.NotContains(t, raw, "max_tokens")
	assert.NotContains(t, raw, "response_format")
}

func TestOllamaProvider_ParseResponse(t *testing.T) {
	p := &OllamaProvider{}

	body := []byte(`{
		"id": "chatcmpl-1",
		"model": "llama3.2",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"to\":\"Ada\"}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
	}`)

	resp, err := p.ParseResponse(body, "llama3.2")
	require.NoError(t, err)
	assert.Equal(t, `{"to":"Ada"}`, resp.Content)
	assert.Equal(t, "llama3.2", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, llm.TokenUsage{PromptTokens: 12, CompletionTokens: 7, TotalTokens: 19}, resp.Usage)
}

func TestOllamaProvider_ParseResponse_Errors(t *testing.T) {
	p := &OllamaProvider{}

	_, err := p.ParseResponse([]byte(`not json`), "m")
	assert.Error(t, err)

	_, err = p.ParseResponse([]byte(`{"choices": []}`), "m")
	assert.ErrorContains(t, err, "no choices")
}

func TestOllamaProvider_SetHeaders(t *testing.T) {
	p := &OllamaProvider{}

	t.Setenv("OLLAMA_API_KEY", "")
	req, _ := http.NewRequest(http.MethodPost, "http://localhost", nil)
	p.SetHeaders(req)
	assert.Empty(t, req.Header.Get("Authorization"))

	t.Setenv("OLLAMA_API_KEY", "secret")
	req, _ = http.NewRequest(http.MethodPost, "http://localhost", nil)
	p.SetHeaders(req)
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
}
