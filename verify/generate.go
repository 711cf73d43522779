package verify

import (
	"context"

	"github.com/c360studio/greeting-e2e/greeting"
	"golang.org/x/sync/errgroup"
)

// Generate produces up to n tasks in the Created state, in generation order.
// A failed payload drops that task; it never aborts the batch.
func (e *Engine) Generate(ctx context.Context, n int) []*Task {
	e.progress.Begin(PhaseGenerate, n)
	defer e.progress.End(PhaseGenerate)

	if n <= 0 {
		return []*Task{}
	}

	slots := make([]*Task, n)
	var g errgroup.Group
	g.SetLimit(e.generateConcurrency)
	for i := range n {
		g.Go(func() error {
			slots[i] = e.generateOne(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	tasks := make([]*Task, 0, n)
	for _, task := range slots {
		if task != nil {
			tasks = append(tasks, task)
		}
	}

	e.logger.Info("Messages generated", "generated", len(tasks), "requested", n)
	return tasks
}

func (e *Engine) generateOne(ctx context.Context, index int) *Task {
	if ctx.Err() != nil {
		return nil
	}

	payload, err := e.generator.Generate(ctx)
	if err != nil {
		e.logger.Warn("Message generation failed, dropping task", "index", index, "error", err)
		e.recorder.ObserveGenerated(false)
		return nil
	}

	cmd, err := greeting.NewCommand(payload, e.now())
	if err != nil {
		e.logger.Warn("Command creation failed, dropping task", "index", index, "error", err)
		e.recorder.ObserveGenerated(false)
		return nil
	}

	e.recorder.ObserveGenerated(true)
	e.progress.Advance(PhaseGenerate)
	return NewTask(cmd)
}
