package generator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/c360studio/greeting-e2e/greeting"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field length limits in runes.
const (
	MaxNameLength    = 20
	MaxHeadingLength = 20
	MaxMessageLength = 50
)

// Sanitize normalizes every field to NFC, strips control characters and
// surrounding whitespace, and truncates to the field limit. A field that
// ends up empty is an ErrGeneration.
func Sanitize(p greeting.Payload) (greeting.Payload, error) {
	fields := []struct {
		name  string
		value *string
		limit int
	}{
		{"to", &p.To, MaxNameLength},
		{"from", &p.From, MaxNameLength},
		{"heading", &p.Heading, MaxHeadingLength},
		{"message", &p.Message, MaxMessageLength},
	}

	for _, f := range fields {
		clean, err := cleanText(*f.value, f.limit)
		if err != nil {
			return greeting.Payload{}, fmt.Errorf("%w: %s: %w", ErrGeneration, f.name, err)
		}
		if clean == "" {
			return greeting.Payload{}, fmt.Errorf("%w: %s is empty", ErrGeneration, f.name)
		}
		*f.value = clean
	}
	return p, nil
}

func cleanText(s string, limit int) (string, error) {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)

	if r := []rune(out); len(r) > limit {
		out = strings.TrimSpace(string(r[:limit]))
	}
	return out, nil
}
