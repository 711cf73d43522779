package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/greeting-e2e/greeting"
)

// DefaultPayload is served by the local generator when no fixtures are configured.
var DefaultPayload = greeting.Payload{
	To:      "Greeting recipient",
	From:    "Greeting sender",
	Heading: "Greeting heading",
	Message: "Greeting main message",
}

// Local serves a fixed list of payloads round-robin.
type Local struct {
	payloads []greeting.Payload
	next     atomic.Uint64
}

// NewLocal returns a generator that always yields DefaultPayload.
func NewLocal() *Local {
	return &Local{payloads: []greeting.Payload{DefaultPayload}}
}

// LoadFixtures reads every JSON file matching the glob patterns, in sorted
// path order. Each file holds one payload object or an array of them.
// Payloads are sanitized; an invalid payload fails the load.
func LoadFixtures(patterns []string) (*Local, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("fixture pattern %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	files = slices.Compact(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no fixture files match %v", patterns)
	}

	var payloads []greeting.Payload
	for _, file := range files {
		loaded, err := readFixture(file)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, loaded...)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("fixture files %v hold no payloads", files)
	}

	return &Local{payloads: payloads}, nil
}

func readFixture(path string) ([]greeting.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var payloads []greeting.Payload
	if err := json.Unmarshal(data, &payloads); err != nil {
		var single greeting.Payload
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", path, err2)
		}
		payloads = []greeting.Payload{single}
	}

	for i, p := range payloads {
		clean, err := Sanitize(p)
		if err != nil {
			return nil, fmt.Errorf("fixture %s[%d]: %w", path, i, err)
		}
		payloads[i] = clean
	}
	return payloads, nil
}

// Len returns the number of distinct payloads served.
func (l *Local) Len() int {
	return len(l.payloads)
}

// Generate returns the next payload.
func (l *Local) Generate(ctx context.Context) (greeting.Payload, error) {
	if err := ctx.Err(); err != nil {
		return greeting.Payload{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	i := l.next.Add(1) - 1
	return l.payloads[i%uint64(len(l.payloads))], nil
}
