package verify

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Dispatch sends every task once and tracks the accepted ones in a new registry.
// Send failures and duplicate ids are returned separately, in generation order,
// and are never tracked.
func (e *Engine) Dispatch(ctx context.Context, tasks []*Task) (*Registry, []*Task) {
	reg := NewRegistry()

	e.progress.Begin(PhaseSend, len(tasks))
	defer e.progress.End(PhaseSend)

	tracked := make([]bool, len(tasks))
	if e.dispatchConcurrency <= 1 {
		for i, task := range tasks {
			tracked[i] = e.dispatchOne(ctx, reg, task)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.dispatchConcurrency)
		for i, task := range tasks {
			g.Go(func() error {
				tracked[i] = e.dispatchOne(ctx, reg, task)
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := make([]*Task, 0)
	for i, task := range tasks {
		if !tracked[i] {
			failed = append(failed, task)
		}
	}

	e.logger.Info("Messages sent",
		"sent", reg.Len(),
		"failed", len(failed),
		"total", len(tasks))
	return reg, failed
}

// dispatchOne sends a single task and reports whether it is now tracked.
func (e *Engine) dispatchOne(ctx context.Context, reg *Registry, task *Task) bool {
	start := e.now()
	resp, err := e.sender.Send(ctx, task.Command)
	elapsed := e.now().Sub(start)

	if err != nil {
		task.State = StateSendFailed
		task.Err = err
		e.recorder.ObserveSent(false, elapsed)
		e.logger.Error("Failed sending message",
			"external_reference", task.Command.ExternalReference,
			"error", err)
		return false
	}
	e.recorder.ObserveSent(true, elapsed)

	task.MessageID = resp.MessageID
	task.SentAt = e.now()
	task.State = StateSent

	if err := reg.Insert(task); err != nil {
		task.State = StateRejected
		task.Err = err
		if errors.Is(err, ErrDuplicateMessageID) {
			e.logger.Warn("Receiver returned a message id that is already tracked, excluding task",
				"message_id", task.MessageID,
				"external_reference", task.Command.ExternalReference)
		} else {
			e.logger.Warn("Task not tracked", "external_reference", task.Command.ExternalReference, "error", err)
		}
		return false
	}

	e.progress.Advance(PhaseSend)
	e.logger.Debug("Message sent",
		"message_id", task.MessageID,
		"external_reference", task.Command.ExternalReference)
	return true
}
