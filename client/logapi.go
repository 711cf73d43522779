package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/c360studio/greeting-e2e/greeting"
)

// LogAPIClient reads the greeting log.
type LogAPIClient struct {
	base
}

// NewLogAPIClient creates a client for the log API at baseURL.
func NewLogAPIClient(baseURL string, opts ...Option) (*LogAPIClient, error) {
	b, err := newBase(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &LogAPIClient{base: b}, nil
}

// LastEntry returns the most recent log entry, or nil when the log is empty.
// An empty log is signalled by 204 and is not an error.
func (c *LogAPIClient) LastEntry(ctx context.Context) (*greeting.LogEntry, error) {
	const op = "get last log entry"

	status, body, err := c.do(ctx, op, http.MethodGet, "/log/last", nil, nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		var entry greeting.LogEntry
		if err := decode(op, body, &entry); err != nil {
			return nil, err
		}
		return &entry, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, c.statusError(op, status, body)
	}
}

// Entries returns up to limit entries starting at offset, in ascending id order.
// 204 is treated as an empty page.
func (c *LogAPIClient) Entries(ctx context.Context, offset int64, limit int) ([]greeting.LogEntry, error) {
	const op = "get log entries"

	query := url.Values{}
	query.Set("direction", "forward")
	query.Set("offset", strconv.FormatInt(offset, 10))
	query.Set("limit", strconv.Itoa(limit))

	status, body, err := c.do(ctx, op, http.MethodGet, "/log", query, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusNoContent:
		return []greeting.LogEntry{}, nil
	case status == http.StatusOK:
		var entries []greeting.LogEntry
		if len(body) == 0 {
			return []greeting.LogEntry{}, nil
		}
		if err := decode(op, body, &entries); err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []greeting.LogEntry{}
		}
		return entries, nil
	default:
		return nil, c.statusError(op, status, body)
	}
}
