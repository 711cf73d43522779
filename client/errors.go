package client

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 2048

// HTTPError is returned when a service answers with a status outside its contract.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// TransportError wraps failures below the HTTP layer: connection refused,
// per-request timeout, unreadable or undecodable body.
type TransportError struct {
	Op  string
	err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.err)
}

func (e *TransportError) Unwrap() error {
	return e.err
}

func newTransportError(op string, err error) error {
	return &TransportError{Op: op, err: err}
}

// IsTransport reports whether err came from talking to a service,
// either as a network failure or an unexpected status.
func IsTransport(err error) bool {
	var httpErr *HTTPError
	var transportErr *TransportError
	return errors.As(err, &httpErr) || errors.As(err, &transportErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
