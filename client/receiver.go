package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/c360studio/greeting-e2e/greeting"
)

// ReceiverClient submits greeting commands to the receiver.
type ReceiverClient struct {
	base
}

// NewReceiverClient creates a client for the receiver at baseURL.
func NewReceiverClient(baseURL string, opts ...Option) (*ReceiverClient, error) {
	b, err := newBase(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &ReceiverClient{base: b}, nil
}

// Send submits one command. It is never retried here.
func (c *ReceiverClient) Send(ctx context.Context, cmd greeting.Command) (*greeting.Response, error) {
	const op = "send greeting"

	status, body, err := c.do(ctx, op, http.MethodPost, "/greeting", nil, cmd)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		return nil, c.statusError(op, status, body)
	}

	var resp greeting.Response
	if err := decode(op, body, &resp); err != nil {
		return nil, err
	}
	if resp.MessageID == "" {
		return nil, newTransportError(op, fmt.Errorf("response has no messageId (body: %s)", truncateBody(body)))
	}
	return &resp, nil
}
