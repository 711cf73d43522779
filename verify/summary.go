package verify

// Summary is a read-only partition of a registry into verified and unverified tasks.
type Summary struct {
	Total    int
	Verified int
	// Tasks are copies in registry insertion order.
	Tasks []*Task
}

// Summarize builds a Summary without mutating reg.
func Summarize(reg *Registry) Summary {
	tasks := reg.Tasks()
	s := Summary{Total: len(tasks), Tasks: tasks}
	for _, t := range tasks {
		if t.Verified() {
			s.Verified++
		}
	}
	return s
}

// VerifiedTasks returns the tasks with a matched log entry.
func (s Summary) VerifiedTasks() []*Task {
	return s.filter(true)
}

// UnverifiedTasks returns the tasks still waiting for a log entry.
func (s Summary) UnverifiedTasks() []*Task {
	return s.filter(false)
}

// Complete reports whether every tracked task was verified.
func (s Summary) Complete() bool {
	return s.Verified == s.Total
}

func (s Summary) filter(verified bool) []*Task {
	out := make([]*Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.Verified() == verified {
			out = append(out, t)
		}
	}
	return out
}
