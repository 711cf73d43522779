// Package testutil provides test doubles for code that depends on the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/greeting-e2e/llm"
)

// MockCompleter is a thread-safe stand-in for *llm.Client. It returns
// Responses in sequence and records every request it receives.
//
// Usage:
//
//	mock := &MockCompleter{
//	    Responses: []*llm.Response{
//	        {Content: `{"to":"Ada","from":"Grace","heading":"Hi","message":"Hello"}`},
//	    },
//	}
type MockCompleter struct {
	mu            sync.Mutex
	Responses     []*llm.Response // Responses to return in sequence
	Err           error           // Error to return (takes precedence over Responses)
	requests      []llm.Request
	responseIndex int
}

// Complete returns the next configured response, or Err if set. Once
// Responses is exhausted the last one is repeated.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &llm.Response{Content: "", Model: "test-model"}, nil
	}

	resp := m.Responses[min(m.responseIndex, len(m.Responses)-1)]
	m.responseIndex++
	return resp, nil
}

// Requests returns a copy of every request passed to Complete.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
