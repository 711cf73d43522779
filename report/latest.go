package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrNotFound is returned when no result is stored for a receiver.
var ErrNotFound = errors.New("result not found")

// resultKV is the part of jetstream.KeyValue used by LatestStore.
type resultKV interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
}

// LatestStore keeps the most recent Result per receiver in a JetStream KV
// bucket, so that dashboards can read the current verdict of each target.
type LatestStore struct {
	kv resultKV
}

// NewLatestStore opens bucket, creating it if it doesn't exist.
func NewLatestStore(ctx context.Context, js jetstream.JetStream, bucket string) (*LatestStore, error) {
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	return &LatestStore{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Latest greeting-e2e result per receiver",
		History:     10,
	})
}

// Put stores r as the latest result of its receiver and returns the revision.
func (s *LatestStore) Put(ctx context.Context, r *Result) (uint64, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("marshal result: %w", err)
	}
	rev, err := s.kv.Put(ctx, LatestKey(r.ReceiverURL), data)
	if err != nil {
		return 0, fmt.Errorf("store result %s: %w", r.RunID, err)
	}
	return rev, nil
}

// Get returns the latest result stored for receiverURL.
func (s *LatestStore) Get(ctx context.Context, receiverURL string) (*Result, error) {
	entry, err := s.kv.Get(ctx, LatestKey(receiverURL))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest result: %w", err)
	}

	var r Result
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, fmt.Errorf("decode latest result: %w", err)
	}
	return &r, nil
}

// LatestKey maps a receiver URL onto a valid KV key: the scheme is dropped and
// every character outside [A-Za-z0-9_-] becomes '_'.
func LatestKey(receiverURL string) string {
	key := receiverURL
	if i := strings.Index(key, "://"); i >= 0 {
		key = key[i+3:]
	}
	key = strings.TrimRight(key, "/")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, key)
}
