package verify

import (
	"time"

	"github.com/c360studio/greeting-e2e/greeting"
)

// State is the lifecycle position of a Task.
type State string

const (
	// StateCreated means generated but not yet sent.
	StateCreated State = "created"
	// StateSent means the receiver accepted the command and returned a message id.
	StateSent State = "sent"
	// StateSendFailed means the receiver call failed. The task is never tracked.
	StateSendFailed State = "send_failed"
	// StateRejected means the receiver returned a message id that is already tracked.
	StateRejected State = "rejected"
	// StateVerified means a log entry with the task's message id was observed.
	StateVerified State = "verified"
)

// Task tracks one generated greeting through send and verification.
type Task struct {
	Command   greeting.Command
	MessageID string
	Entry     *greeting.LogEntry
	State     State

	// SentAt is when the receiver acknowledged the command.
	SentAt time.Time
	// VerifiedAt is when the matching log entry was consumed.
	VerifiedAt time.Time
	// Err is the send failure for StateSendFailed and StateRejected tasks.
	Err error
}

// NewTask wraps a command in a task in the Created state.
func NewTask(cmd greeting.Command) *Task {
	return &Task{Command: cmd, State: StateCreated}
}

// Verified reports whether a log entry has been attached.
func (t *Task) Verified() bool {
	return t.Entry != nil
}

// Latency is the time from send acknowledgement to observation in the log.
// Zero for unverified tasks.
func (t *Task) Latency() time.Duration {
	if !t.Verified() || t.SentAt.IsZero() {
		return 0
	}
	return t.VerifiedAt.Sub(t.SentAt)
}

// snapshot returns a copy that shares no mutable state with t.
func (t *Task) snapshot() *Task {
	cp := *t
	if t.Entry != nil {
		entry := *t.Entry
		cp.Entry = &entry
	}
	return &cp
}
