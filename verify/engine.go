// Package verify implements the verification engine: it establishes a starting
// offset in the greeting log, generates and dispatches greetings, and polls the
// log forward until every dispatched greeting is observed or a deadline expires.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/greeting-e2e/generator"
	"github.com/c360studio/greeting-e2e/greeting"
)

// DefaultPollInterval is the backoff after an empty log page.
const DefaultPollInterval = time.Second

// LogReader is the read side of the log API.
type LogReader interface {
	LastEntry(ctx context.Context) (*greeting.LogEntry, error)
	Entries(ctx context.Context, offset int64, limit int) ([]greeting.LogEntry, error)
}

// Sender submits greeting commands to the receiver.
type Sender interface {
	Send(ctx context.Context, cmd greeting.Command) (*greeting.Response, error)
}

// Engine runs one verification at a time. It holds no per-run state.
type Engine struct {
	log       LogReader
	sender    Sender
	generator generator.Generator

	logger              *slog.Logger
	progress            Progress
	recorder            Recorder
	pollInterval        time.Duration
	generateConcurrency int
	dispatchConcurrency int
	now                 func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProgress sets the progress reporter.
func WithProgress(p Progress) Option {
	return func(e *Engine) {
		e.progress = p
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithPollInterval sets the sleep after an empty log page.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithGenerateConcurrency bounds concurrent generator calls. Default 1.
func WithGenerateConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.generateConcurrency = n
		}
	}
}

// WithDispatchConcurrency bounds concurrent sends. Default 1, which dispatches
// strictly one at a time in generation order.
func WithDispatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.dispatchConcurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(log LogReader, sender Sender, gen generator.Generator, opts ...Option) *Engine {
	e := &Engine{
		log:                 log,
		sender:              sender,
		generator:           gen,
		logger:              slog.Default(),
		progress:            noopProgress{},
		recorder:            noopRecorder{},
		pollInterval:        DefaultPollInterval,
		generateConcurrency: 1,
		dispatchConcurrency: 1,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params are the per-run inputs.
type Params struct {
	// Iterations is the number of greetings to generate.
	Iterations int
	// PageLimit is the maximum number of log entries requested per poll.
	PageLimit int
	// Timeout bounds the whole verification loop.
	Timeout time.Duration
}

// Validate checks that the parameters can be executed.
func (p Params) Validate() error {
	if p.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative, got %d", ErrInvalidParams, p.Iterations)
	}
	if p.PageLimit < 1 {
		return fmt.Errorf("%w: page limit must be positive, got %d", ErrInvalidParams, p.PageLimit)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidParams, p.Timeout)
	}
	return nil
}

// Outcome is the result of a completed run.
type Outcome struct {
	Registry *Registry

	StartOffset int64
	FinalOffset int64

	Requested          int
	Generated          int
	GenerationFailures int
	// Failed holds tasks that were never tracked: send failures and rejected duplicates.
	Failed []*Task

	StartedAt time.Time
	Durations map[Phase]time.Duration
}

// SendFailures counts tasks whose send call failed.
func (o *Outcome) SendFailures() int {
	n := 0
	for _, t := range o.Failed {
		if t.State == StateSendFailed {
			n++
		}
	}
	return n
}

// Rejected counts tasks excluded because of a duplicate message id.
func (o *Outcome) Rejected() int {
	n := 0
	for _, t := range o.Failed {
		if t.State == StateRejected {
			n++
		}
	}
	return n
}

// Run executes offset discovery, generation, dispatch and verification.
// On error no outcome is returned.
func (e *Engine) Run(ctx context.Context, p Params) (*Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := &Outcome{
		Requested: p.Iterations,
		StartedAt: e.now(),
		Durations: make(map[Phase]time.Duration),
	}

	offset, err := e.DiscoverOffset(ctx)
	if err != nil {
		return nil, err
	}
	out.StartOffset = offset

	start := e.now()
	tasks := e.Generate(ctx, p.Iterations)
	out.Durations[PhaseGenerate] = e.now().Sub(start)
	out.Generated = len(tasks)
	out.GenerationFailures = p.Iterations - len(tasks)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generate messages: %w", err)
	}

	start = e.now()
	reg, failed := e.Dispatch(ctx, tasks)
	out.Durations[PhaseSend] = e.now().Sub(start)
	out.Failed = failed
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("send messages: %w", err)
	}

	start = e.now()
	final, err := e.Verify(ctx, reg, offset, p.PageLimit, p.Timeout)
	out.Durations[PhaseVerify] = e.now().Sub(start)
	if err != nil {
		return nil, err
	}

	out.Registry = reg
	out.FinalOffset = final
	return out, nil
}

// DiscoverOffset returns the id of the last log entry, or 0 for an empty log.
func (e *Engine) DiscoverOffset(ctx context.Context) (int64, error) {
	last, err := e.log.LastEntry(ctx)
	if err != nil {
		return 0, fmt.Errorf("discover offset: %w", err)
	}

	var offset int64
	if last != nil {
		offset = last.ID
	}
	e.logger.Info("Starting offset discovered", "offset", offset, "empty_log", last == nil)
	e.recorder.SetOffset(offset)
	return offset, nil
}
