// Package greeting defines the wire types exchanged with the greeting receiver
// and the greeting log API.
package greeting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the content of one synthetic greeting as produced by a generator.
type Payload struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Heading string `json:"heading"`
	Message string `json:"message"`
}

// Command is the request body submitted to the receiver.
// It is immutable once created.
type Command struct {
	ExternalReference string    `json:"externalReference"`
	To                string    `json:"to"`
	From              string    `json:"from"`
	Heading           string    `json:"heading"`
	Message           string    `json:"message"`
	Created           time.Time `json:"created"`
}

// NewCommand stamps a payload with a fresh time-ordered external reference
// and the given creation time.
func NewCommand(p Payload, created time.Time) (Command, error) {
	ref, err := uuid.NewV7()
	if err != nil {
		return Command{}, fmt.Errorf("generate external reference: %w", err)
	}
	return Command{
		ExternalReference: ref.String(),
		To:                p.To,
		From:              p.From,
		Heading:           p.Heading,
		Message:           p.Message,
		Created:           created.UTC(),
	}, nil
}

// Response is the receiver's acknowledgement. MessageID is the correlation key
// used to match the command against the log.
type Response struct {
	MessageID string `json:"messageId"`
}

// LogEntry is one durable record from the log API.
// ID is the sequence id and the only source of ordering truth.
type LogEntry struct {
	ID         int64     `json:"id"`
	GreetingID int64     `json:"greetingId"`
	MessageID  string    `json:"messageId"`
	Created    time.Time `json:"created"`
}
