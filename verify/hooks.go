package verify

import "time"

// Phase names a stage of a run for progress reporting.
type Phase string

const (
	PhaseGenerate Phase = "generate"
	PhaseSend     Phase = "send"
	PhaseVerify   Phase = "verify"
)

// Progress receives phase progress. Implementations must tolerate calls from
// multiple goroutines when generation or dispatch run concurrently.
type Progress interface {
	Begin(phase Phase, total int)
	Advance(phase Phase)
	End(phase Phase)
}

// Recorder receives run measurements.
type Recorder interface {
	ObserveGenerated(ok bool)
	ObserveSent(ok bool, duration time.Duration)
	ObservePoll(entries int)
	ObserveVerified(latency time.Duration)
	SetOffset(offset int64)
}

type noopProgress struct{}

func (noopProgress) Begin(Phase, int) {}
func (noopProgress) Advance(Phase) {}
func (noopProgress) End(Phase) {}

type noopRecorder struct{}

func (noopRecorder) ObserveGenerated(bool) {}
func (noopRecorder) ObserveSent(bool, time.Duration) {}
func (noopRecorder) ObservePoll(int) {}
func (noopRecorder) ObserveVerified(time.Duration) {}
func (noopRecorder) SetOffset(int64) {}
