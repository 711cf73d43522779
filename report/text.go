package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/c360studio/greeting-e2e/verify"
)

const rule = "═══════════════════════════════════════════════════════════════"

// WriteText renders r as a human readable summary. With verbose set, every
// unverified or untracked task is listed.
func WriteText(w io.Writer, r *Result, verbose bool) error {
	var b strings.Builder

	b.WriteString("\n" + rule + "\n")
	b.WriteString("                     GREETING E2E SUMMARY\n")
	b.WriteString(rule + "\n")

	status := "✓ PASSED"
	switch r.Status {
	case StatusFailed:
		status = "✗ FAILED"
	case StatusError:
		status = "✗ ERROR"
	}
	fmt.Fprintf(&b, "  %s  run %s (%dms)\n", status, r.RunID, r.Duration.Milliseconds())
	if r.Error != "" {
		fmt.Fprintf(&b, "           %s\n", truncate(r.Error, 80))
	}

	b.WriteString(strings.Repeat("─", 65) + "\n")
	fmt.Fprintf(&b, "  Receiver:  %s\n", r.ReceiverURL)
	fmt.Fprintf(&b, "  Log API:   %s\n", r.LogAPIURL)
	fmt.Fprintf(&b, "  Generator: %s\n", r.Generator)
	fmt.Fprintf(&b, "  Offsets:   %d → %d\n", r.StartOffset, r.FinalOffset)

	if len(r.Stages) > 0 {
		b.WriteString("\nStages:\n")
		for _, stage := range r.Stages {
			fmt.Fprintf(&b, "  %-10s %dms\n", stage.Name, stage.Duration.Milliseconds())
		}
	}

	c := r.Counts
	b.WriteString("\nMessages:\n")
	fmt.Fprintf(&b, "  Generated: %d/%d", c.Generated, c.Requested)
	if c.GenerationFailures > 0 {
		fmt.Fprintf(&b, " (%d failed)", c.GenerationFailures)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Sent:      %d", c.Sent)
	if c.SendFailures > 0 || c.Rejected > 0 {
		fmt.Fprintf(&b, " (%d failed, %d rejected)", c.SendFailures, c.Rejected)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Verified:  %d/%d\n", c.Verified, c.Verified+c.Unverified)

	if l := r.Latency; l != nil {
		fmt.Fprintf(&b, "\nLatency: min %s | mean %s | p95 %s | max %s\n",
			ms(l.Min), ms(l.Mean), ms(l.P95), ms(l.Max))
	}

	if verbose {
		writeTaskList(&b, r)
	}

	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

const stampLayout = "2006-01-02T15:04:05.000Z07:00"

func writeTaskList(b *strings.Builder, r *Result) {
	var lines []string
	for _, t := range r.Tasks {
		if t.State == verify.StateVerified {
			continue
		}
		line := fmt.Sprintf("  %-11s %s", t.State, t.ExternalReference)
		if t.MessageID != "" {
			line += " message_id=" + t.MessageID
		}
		if !t.SentAt.IsZero() {
			line += " sent=" + t.SentAt.UTC().Format(stampLayout)
		}
		if t.LoggedAt != nil {
			line += " logged=" + t.LoggedAt.UTC().Format(stampLayout)
		}
		if t.Error != "" {
			line += " error=" + truncate(t.Error, 60)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 && len(r.Outstanding) > 0 {
		for _, id := range r.Outstanding {
			lines = append(lines, "  unverified  message_id="+id)
		}
	}
	if len(lines) == 0 {
		return
	}

	b.WriteString("\nNot verified:\n")
	for _, line := range lines {
		b.WriteString(line + "\n")
	}
}

func ms(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
