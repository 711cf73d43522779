// Package client provides HTTP clients for the greeting receiver and the
// greeting log API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is applied to every request regardless of phase.
const DefaultTimeout = 30 * time.Second

// maxResponseSize limits response bodies read from the services.
const maxResponseSize = 10 * 1024 * 1024

// Option configures a client.
type Option func(*base)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		b.httpClient = c
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		b.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// base holds what both clients share: a fixed base URL and transport config.
type base struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func newBase(rawURL string, opts []Option) (base, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return base{}, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return base{}, fmt.Errorf("invalid url %q: scheme and host are required", rawURL)
	}

	b := base{
		baseURL: strings.TrimSuffix(rawURL, "/"),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: b.timeout}
	}
	return b, nil
}

// do executes a request and returns status and body. Only network-level
// failures are returned as errors; status handling is left to the caller.
func (b *base) do(ctx context.Context, op, method, path string, query url.Values, body any) (int, []byte, error) {
	endpoint := b.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, nil, newTransportError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, newTransportError(op, fmt.Errorf("read response: %w", err))
	}

	b.logger.Debug("HTTP response",
		"op", op,
		"method", method,
		"url", endpoint,
		"status", resp.StatusCode,
		"bytes", len(respBody))

	return resp.StatusCode, respBody, nil
}

// statusError logs the error body and builds the HTTPError for it.
func (b *base) statusError(op string, status int, body []byte) error {
	err := &HTTPError{Op: op, StatusCode: status, Body: truncateBody(body)}
	b.logger.Error("Unexpected response", "op", op, "status", status, "body", err.Body)
	return err
}

func decode(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return newTransportError(op, fmt.Errorf("unmarshal response: %w (body: %s)", err, truncateBody(body)))
	}
	return nil
}
