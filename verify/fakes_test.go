package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/c360studio/greeting-e2e/greeting"
)

var errBoom = errors.New("connection reset by peer")

// fakeService is an in-memory receiver and log. Every accepted send appends a
// log entry unless dropLog is set.
type fakeService struct {
	mu sync.Mutex

	entries   []greeting.LogEntry
	sends     int
	lastErr   error
	pollErr   error
	dropLog   bool
	failSends map[int]bool   // 1-based send call numbers that fail
	fixedIDs  map[int]string // 1-based send call numbers with a forced message id

	entryCalls []entryCall
	sendCalls  []greeting.Command
}

type entryCall struct {
	offset int64
	limit  int
}

func newFakeService() *fakeService {
	return &fakeService{failSends: map[int]bool{}, fixedIDs: map[int]string{}}
}

// appendForeign adds n entries that belong to unrelated traffic.
func (f *fakeService) appendForeign(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for range n {
		f.appendLocked(fmt.Sprintf("foreign-%d", len(f.entries)+1))
	}
}

func (f *fakeService) appendLocked(messageID string) {
	id := int64(len(f.entries) + 1)
	f.entries = append(f.entries, greeting.LogEntry{
		ID:         id,
		GreetingID: id * 10,
		MessageID:  messageID,
		Created:    time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC),
	})
}

func (f *fakeService) LastEntry(_ context.Context) (*greeting.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lastErr != nil {
		return nil, f.lastErr
	}
	if len(f.entries) == 0 {
		return nil, nil
	}
	last := f.entries[len(f.entries)-1]
	return &last, nil
}

func (f *fakeService) Entries(ctx context.Context, offset int64, limit int) ([]greeting.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entryCalls = append(f.entryCalls, entryCall{offset: offset, limit: limit})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.pollErr != nil {
		return nil, f.pollErr
	}

	page := []greeting.LogEntry{}
	for _, e := range f.entries {
		if e.ID >= offset && len(page) < limit {
			page = append(page, e)
		}
	}
	return page, nil
}

func (f *fakeService) Send(_ context.Context, cmd greeting.Command) (*greeting.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sends++
	f.sendCalls = append(f.sendCalls, cmd)
	if f.failSends[f.sends] {
		return nil, fmt.Errorf("send %d: %w", f.sends, errBoom)
	}

	id := fmt.Sprintf("M%d", f.sends)
	if forced, ok := f.fixedIDs[f.sends]; ok {
		id = forced
	}
	if !f.dropLog {
		f.appendLocked(id)
	}
	return &greeting.Response{MessageID: id}, nil
}

func (f *fakeService) calls() []entryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entryCall(nil), f.entryCalls...)
}

// staticGenerator returns the same payload, failing on the listed 1-based calls.
type staticGenerator struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
}

func (g *staticGenerator) Generate(ctx context.Context) (greeting.Payload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.fail[g.calls] {
		return greeting.Payload{}, errors.New("model unavailable")
	}
	return greeting.Payload{To: "Ada", From: "Grace", Heading: "Hello", Message: fmt.Sprintf("message %d", g.calls)}, ctx.Err()
}

// countingRecorder tallies Recorder calls.
type countingRecorder struct {
	mu                        sync.Mutex
	generated, generateFailed int
	sent, sendFailed          int
	polls, polledEntries      int
	verified                  int
	offset                    int64
}

func (r *countingRecorder) ObserveGenerated(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.generated++
	} else {
		r.generateFailed++
	}
}

func (r *countingRecorder) ObserveSent(ok bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.sent++
	} else {
		r.sendFailed++
	}
}

func (r *countingRecorder) ObservePoll(entries int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	r.polledEntries += entries
}

func (r *countingRecorder) ObserveVerified(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verified++
}

func (r *countingRecorder) SetOffset(offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset = offset
}

// recordingProgress records Begin totals and Advance counts per phase.
type recordingProgress struct {
	mu       sync.Mutex
	totals   map[Phase]int
	advances map[Phase]int
	ended    map[Phase]bool
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{totals: map[Phase]int{}, advances: map[Phase]int{}, ended: map[Phase]bool{}}
}

func (p *recordingProgress) Begin(phase Phase, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals[phase] = total
}

func (p *recordingProgress) Advance(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advances[phase]++
}

func (p *recordingProgress) End(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended[phase] = true
}
