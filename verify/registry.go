package verify

import (
	"fmt"
	"sync"
	"time"

	"github.com/c360studio/greeting-e2e/greeting"
)

// Registry maps message id to task for one run. It is safe for concurrent
// insertion; matching is done by the single verification loop.
type Registry struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	order   []string
	pending int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Insert tracks a sent task under its message id. A second task with the same
// id is rejected rather than overwriting the first.
func (r *Registry) Insert(task *Task) error {
	if task.MessageID == "" {
		return fmt.Errorf("insert task %s: empty message id", task.Command.ExternalReference)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tasks[task.MessageID]; ok {
		return fmt.Errorf("%w %q: already tracked for %s", ErrDuplicateMessageID,
			task.MessageID, existing.Command.ExternalReference)
	}

	r.tasks[task.MessageID] = task
	r.order = append(r.order, task.MessageID)
	if !task.Verified() {
		r.pending++
	}
	return nil
}

// Match attaches entry to the task with the same message id. It returns a copy
// of the task when this call verified it, nil when the id is unknown or the task
// is already verified.
func (r *Registry) Match(entry greeting.LogEntry, at time.Time) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[entry.MessageID]
	if !ok || task.Verified() {
		return nil
	}

	matched := entry
	task.Entry = &matched
	task.State = StateVerified
	task.VerifiedAt = at
	r.pending--
	return task.snapshot()
}

// Get returns a copy of the task tracked under messageID.
func (r *Registry) Get(messageID string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[messageID]
	if !ok {
		return nil, false
	}
	return task.snapshot(), true
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Pending returns the number of tracked tasks not yet verified.
func (r *Registry) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending
}

// Outstanding returns the message ids of unverified tasks in insertion order.
func (r *Registry) Outstanding() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, r.pending)
	for _, id := range r.order {
		if !r.tasks[id].Verified() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Tasks returns copies of all tracked tasks in insertion order.
func (r *Registry) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id].snapshot())
	}
	return out
}
