// Package progress renders terminal progress bars for the phases of a run.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/c360studio/greeting-e2e/verify"
	"github.com/schollz/progressbar/v3"
)

var labels = map[verify.Phase]struct{ prefix, verb string }{
	verify.PhaseGenerate: {"Generating messages", "generated"},
	verify.PhaseSend:     {"Sending messages", "sent"},
	verify.PhaseVerify:   {"Verifying messages", "verified"},
}

type phaseBar struct {
	bar     *progressbar.ProgressBar
	total   int
	done    int
	started time.Time
}

// Bars implements verify.Progress with one bar per phase, drawn one after
// another on w.
type Bars struct {
	w   io.Writer
	now func() time.Time

	mu     sync.Mutex
	phases map[verify.Phase]*phaseBar
}

// NewBars creates bars that render to w, normally os.Stderr.
func NewBars(w io.Writer) *Bars {
	return &Bars{w: w, now: time.Now, phases: make(map[verify.Phase]*phaseBar)}
}

// Begin starts the bar for phase.
func (b *Bars) Begin(phase verify.Phase, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	label := labels[phase]
	bar := progressbar.NewOptions(max(total, 1),
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(fmt.Sprintf("%-20s", label.prefix)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: " ",
			BarStart:      "▕",
			BarEnd:        "▏",
		}),
	)
	b.phases[phase] = &phaseBar{bar: bar, total: total, started: b.now()}
}

// Advance moves the bar for phase by one.
func (b *Bars) Advance(phase verify.Phase) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pb, ok := b.phases[phase]
	if !ok {
		return
	}
	pb.done++
	_ = pb.bar.Add(1)
}

// End leaves the bar at its final position and prints the phase summary.
// A bar that did not reach its total stays partially filled.
func (b *Bars) End(phase verify.Phase) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pb, ok := b.phases[phase]
	if !ok {
		return
	}
	delete(b.phases, phase)

	fmt.Fprintf(b.w, " %d/%d %s in %s\n",
		pb.done, pb.total, labels[phase].verb, b.now().Sub(pb.started).Round(time.Millisecond))
}
