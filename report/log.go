package report

import (
	"context"
	"log/slog"

	"github.com/c360studio/greeting-e2e/verify"
)

// LogSummary writes the verdict at INFO (WARN when not passed) and per-task
// detail at DEBUG.
func LogSummary(ctx context.Context, logger *slog.Logger, r *Result) {
	level := slog.LevelInfo
	if r.Status != StatusPassed {
		level = slog.LevelWarn
	}

	attrs := []any{
		"run_id", r.RunID,
		"status", r.Status,
		"verified", r.Counts.Verified,
		"unverified", r.Counts.Unverified,
		"send_failures", r.Counts.SendFailures,
		"rejected", r.Counts.Rejected,
		"offset", r.FinalOffset,
		"duration", r.Duration,
	}
	if r.Error != "" {
		attrs = append(attrs, "error", r.Error)
	}
	logger.Log(ctx, level, "Run finished", attrs...)

	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	for _, t := range r.Tasks {
		fields := []any{
			"message_id", t.MessageID,
			"external_reference", t.ExternalReference,
		}
		if !t.SentAt.IsZero() {
			fields = append(fields, "sent_at", t.SentAt)
		}
		if t.LoggedAt != nil {
			fields = append(fields, "logged_at", *t.LoggedAt)
		}

		if t.State == verify.StateVerified {
			fields = append(fields, "entry_id", t.EntryID, "latency", t.Latency)
			logger.DebugContext(ctx, "Verified message", fields...)
			continue
		}
		fields = append(fields, "state", t.State, "error", t.Error)
		logger.DebugContext(ctx, "Unverified message", fields...)
	}
	for _, id := range r.Outstanding {
		logger.DebugContext(ctx, "Unverified message", "message_id", id, "state", verify.StateSent)
	}
}
