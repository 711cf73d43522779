package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/c360studio/greeting-e2e/verify"
	"github.com/stretchr/testify/assert"
)

func TestBars_PhaseSummary(t *testing.T) {
	var buf bytes.Buffer
	bars := NewBars(&buf)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}

	bars.Begin(verify.PhaseSend, 3)
	bars.Advance(verify.PhaseSend)
	bars.Advance(verify.PhaseSend)
	bars.End(verify.PhaseSend)

	out := buf.String()
	assert.Contains(t, out, "Sending messages")
	assert.Contains(t, out, "2/3 sent in 250ms")
}

func TestBars_EmptyPhase(t *testing.T) {
	var buf bytes.Buffer
	bars := NewBars(&buf)

	bars.Begin(verify.PhaseVerify, 0)
	bars.End(verify.PhaseVerify)

	assert.Contains(t, buf.String(), "0/0 verified in")
}

func TestBars_IgnoresUnknownPhase(t *testing.T) {
	var buf bytes.Buffer
	bars := NewBars(&buf)

	bars.Advance(verify.PhaseGenerate)
	bars.End(verify.PhaseGenerate)
	assert.Empty(t, buf.String())
}

func TestBars_ImplementsProgress(t *testing.T) {
	var _ verify.Progress = NewBars(&bytes.Buffer{})
}
