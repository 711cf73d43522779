package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher delivers a finished Result somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, r *Result) error
	Close() error
}

// msgConn is the part of *nats.Conn used by NATSPublisher.
type msgConn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes each Result as JSON on a subject. The run id is
// sent as Nats-Msg-Id so a JetStream stream on the subject deduplicates
// republished runs.
type NATSPublisher struct {
	conn    msgConn
	subject string
	latest  *LatestStore
}

// NewNATSPublisher connects to the NATS server at url. When latestBucket is
// set, each result is also stored as the latest for its receiver in that
// JetStream KV bucket.
func NewNATSPublisher(ctx context.Context, url, subject, latestBucket string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("greeting-e2e"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := &NATSPublisher{conn: nc, subject: subject}
	if latestBucket != "" {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		p.latest, err = NewLatestStore(ctx, js, latestBucket)
		if err != nil {
			nc.Close()
			return nil, err
		}
	}
	return p, nil
}

// Publish sends r and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, r *Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	msg, err := resultMsg(p.subject, r)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush result: %w", err)
	}
	if p.latest != nil {
		if _, err := p.latest.Put(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

func resultMsg(subject string, r *Result) (*nats.Msg, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, r.RunID)
	msg.Header.Set("Greeting-E2E-Status", string(r.Status))
	return msg, nil
}
