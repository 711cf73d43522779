package report

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/greeting-e2e/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSummary(t *testing.T) {
	t.Run("passed logs at info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

		LogSummary(context.Background(), logger, passedResult())

		out := buf.String()
		assert.Contains(t, out, "level=INFO")
		assert.Contains(t, out, `msg="Run finished"`)
		assert.Contains(t, out, "status=passed")
		assert.Contains(t, out, "verified=3")
		assert.NotContains(t, out, "Verified message")
	})

	t.Run("failed logs at warn with detail at debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		LogSummary(context.Background(), logger, timeoutResult())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Len(t, lines, 3)
		assert.Contains(t, lines[0], "level=WARN")
		assert.Contains(t, lines[0], "error=")
		assert.Contains(t, lines[1], "message_id=M2")
		assert.Contains(t, lines[2], "message_id=M3")
	})

	t.Run("task timestamps", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		logged := t0.Add(250 * time.Millisecond)
		r := passedResult()
		r.Tasks = []TaskResult{
			{ExternalReference: "ref-1", MessageID: "M1", State: verify.StateVerified, EntryID: 42,
				SentAt: t0.Add(100 * time.Millisecond), LoggedAt: &logged},
			{ExternalReference: "ref-2", MessageID: "M2", State: verify.StateSent, SentAt: t0.Add(200 * time.Millisecond)},
		}

		LogSummary(context.Background(), logger, r)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[1], "external_reference=ref-1")
		assert.Contains(t, lines[1], "sent_at=2024-05-01T12:00:00.100Z")
		assert.Contains(t, lines[1], "logged_at=2024-05-01T12:00:00.250Z")
		assert.Contains(t, lines[2], "external_reference=ref-2")
		assert.Contains(t, lines[2], "sent_at=2024-05-01T12:00:00.200Z")
		assert.NotContains(t, lines[2], "logged_at=")
	})

	t.Run("task detail", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		LogSummary(context.Background(), logger, sendFailureResult())

		out := buf.String()
		assert.Equal(t, 2, strings.Count(out, `msg="Verified message"`))
		assert.Contains(t, out, "state=send_failed")
		assert.Contains(t, out, "external_reference=ref-2")
	})
}
