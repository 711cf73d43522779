// Package report turns a verification run into a Result and renders,
// publishes and archives it.
package report

import (
	"errors"
	"slices"
	"time"

	"github.com/c360studio/greeting-e2e/verify"
)

// Status is the verdict of a run.
type Status string

const (
	// StatusPassed means every tracked greeting was verified and the send
	// failure policy was satisfied.
	StatusPassed Status = "passed"
	// StatusFailed means the service did not catch up in time, or send
	// failures occurred while they are configured to fail the run.
	StatusFailed Status = "failed"
	// StatusError means the run could not be executed (unreachable service,
	// bad response, cancellation).
	StatusError Status = "error"
)

// Meta describes the run independently of its outcome.
type Meta struct {
	RunID           string    `json:"run_id"`
	ReceiverURL     string    `json:"receiver_url"`
	LogAPIURL       string    `json:"log_api_url"`
	Generator       string    `json:"generator"`
	Iterations      int       `json:"iterations"`
	FailOnSendError bool      `json:"fail_on_send_error"`
	StartTime       time.Time `json:"start_time"`
}

// Result contains the outcome of one run.
type Result struct {
	Meta

	EndTime  time.Time     `json:"end_time"`
	Duration time.Duration `json:"duration"`

	Status  Status `json:"status"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Counts Counts `json:"counts"`

	StartOffset int64 `json:"start_offset"`
	FinalOffset int64 `json:"final_offset"`

	Latency *LatencyStats `json:"latency,omitempty"`

	// Stages tracks the duration of each phase that ran.
	Stages []StageResult `json:"stages,omitempty"`

	// Tasks lists tracked tasks in send order, then untracked ones.
	Tasks []TaskResult `json:"tasks,omitempty"`

	// Outstanding holds the message ids not verified before a timeout.
	Outstanding []string `json:"outstanding,omitempty"`
}

// Counts are the per-phase tallies of a run.
type Counts struct {
	Requested          int `json:"requested"`
	Generated          int `json:"generated"`
	GenerationFailures int `json:"generation_failures"`
	Sent               int `json:"sent"`
	SendFailures       int `json:"send_failures"`
	Rejected           int `json:"rejected"`
	Verified           int `json:"verified"`
	Unverified         int `json:"unverified"`
}

// StageResult represents the duration of a single phase.
type StageResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// TaskResult is the reportable view of one task.
type TaskResult struct {
	ExternalReference string        `json:"external_reference"`
	MessageID         string        `json:"message_id,omitempty"`
	State             verify.State  `json:"state"`
	EntryID           int64         `json:"entry_id,omitempty"`
	SentAt            time.Time     `json:"sent_at,omitzero"`
	LoggedAt          *time.Time    `json:"logged_at,omitempty"`
	Latency           time.Duration `json:"latency,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// LatencyStats summarize send-to-observation latency of verified tasks.
type LatencyStats struct {
	Min  time.Duration `json:"min"`
	Mean time.Duration `json:"mean"`
	P95  time.Duration `json:"p95"`
	Max  time.Duration `json:"max"`
}

var phaseOrder = []verify.Phase{verify.PhaseGenerate, verify.PhaseSend, verify.PhaseVerify}

// Build assembles the Result of a run. out is nil when runErr is set, since
// the engine returns no partial outcome.
func Build(meta Meta, out *verify.Outcome, runErr error, end time.Time) *Result {
	r := &Result{
		Meta:     meta,
		EndTime:  end,
		Duration: end.Sub(meta.StartTime),
		Counts:   Counts{Requested: meta.Iterations},
	}

	if runErr != nil {
		r.Error = runErr.Error()
		r.Status = StatusError
		var timeoutErr *verify.TimeoutError
		if errors.As(runErr, &timeoutErr) {
			r.Status = StatusFailed
			r.FinalOffset = timeoutErr.Offset
			r.Outstanding = slices.Clone(timeoutErr.Outstanding)
			r.Counts.Unverified = len(timeoutErr.Outstanding)
		}
		return r
	}

	summary := verify.Summarize(out.Registry)
	r.StartOffset = out.StartOffset
	r.FinalOffset = out.FinalOffset
	r.Counts = Counts{
		Requested:          out.Requested,
		Generated:          out.Generated,
		GenerationFailures: out.GenerationFailures,
		Sent:               summary.Total,
		SendFailures:       out.SendFailures(),
		Rejected:           out.Rejected(),
		Verified:           summary.Verified,
		Unverified:         summary.Total - summary.Verified,
	}

	for _, phase := range phaseOrder {
		if d, ok := out.Durations[phase]; ok {
			r.Stages = append(r.Stages, StageResult{Name: string(phase), Duration: d})
		}
	}

	var latencies []time.Duration
	for _, t := range summary.Tasks {
		r.Tasks = append(r.Tasks, taskResult(t))
		if t.Verified() {
			latencies = append(latencies, t.Latency())
		}
	}
	for _, t := range out.Failed {
		r.Tasks = append(r.Tasks, taskResult(t))
	}
	r.Latency = latencyStats(latencies)

	r.Success = summary.Complete()
	if meta.FailOnSendError && (r.Counts.SendFailures > 0 || r.Counts.Rejected > 0) {
		r.Success = false
		r.Error = "send failures occurred and fail_on_send_error is set"
	}
	r.Status = StatusFailed
	if r.Success {
		r.Status = StatusPassed
	}
	return r
}

func taskResult(t *verify.Task) TaskResult {
	tr := TaskResult{
		ExternalReference: t.Command.ExternalReference,
		MessageID:         t.MessageID,
		State:             t.State,
		SentAt:            t.SentAt,
		Latency:           t.Latency(),
	}
	if t.Entry != nil {
		tr.EntryID = t.Entry.ID
		if created := t.Entry.Created; !created.IsZero() {
			tr.LoggedAt = &created
		}
	}
	if t.Err != nil {
		tr.Error = t.Err.Error()
	}
	return tr
}

func latencyStats(ds []time.Duration) *LatencyStats {
	if len(ds) == 0 {
		return nil
	}
	sorted := slices.Clone(ds)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	p95 := sorted[(len(sorted)*95+99)/100-1]
	return &LatencyStats{
		Min:  sorted[0],
		Mean: total / time.Duration(len(sorted)),
		P95:  p95,
		Max:  sorted[len(sorted)-1],
	}
}
