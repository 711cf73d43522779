package verify

import (
	"context"
	"fmt"
	"time"
)

// Verify polls the log forward from offset until every task in reg is matched
// or budget elapses. It returns the final watermark.
//
// Each consumed entry moves the watermark to its id whether or not it matched,
// so unrelated traffic on the same log never stalls the loop. The budget covers
// the whole loop, not individual requests.
func (e *Engine) Verify(ctx context.Context, reg *Registry, offset int64, pageLimit int, budget time.Duration) (int64, error) {
	e.progress.Begin(PhaseVerify, reg.Len())
	defer e.progress.End(PhaseVerify)

	if reg.Pending() == 0 {
		return offset, nil
	}

	loopCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	current := offset
	for reg.Pending() > 0 {
		if loopCtx.Err() != nil {
			return current, e.stopError(ctx, loopCtx, reg, budget, current)
		}

		entries, err := e.log.Entries(loopCtx, current+1, pageLimit)
		if err != nil {
			if stopErr := e.stopError(ctx, loopCtx, reg, budget, current); stopErr != nil {
				return current, stopErr
			}
			return current, fmt.Errorf("poll log after offset %d: %w", current, err)
		}
		e.recorder.ObservePoll(len(entries))

		if len(entries) == 0 {
			if err := e.sleep(loopCtx); err != nil {
				return current, e.stopError(ctx, loopCtx, reg, budget, current)
			}
			continue
		}

		e.logger.Debug("Found log entries", "count", len(entries), "offset", current)

		before := current
		for _, entry := range entries {
			if entry.ID <= current {
				e.logger.Warn("Ignoring log entry at or below watermark",
					"entry_id", entry.ID,
					"offset", current)
				continue
			}

			if task := reg.Match(entry, e.now()); task != nil {
				e.recorder.ObserveVerified(task.Latency())
				e.progress.Advance(PhaseVerify)
				e.logger.Debug("Message verified",
					"message_id", task.MessageID,
					"entry_id", entry.ID,
					"latency", task.Latency())
			}
			current = entry.ID
		}
		e.recorder.SetOffset(current)

		// A page with nothing past the watermark is treated like an empty one.
		if current == before {
			if err := e.sleep(loopCtx); err != nil {
				return current, e.stopError(ctx, loopCtx, reg, budget, current)
			}
		}
	}

	e.logger.Info("All messages verified", "verified", reg.Len(), "offset", current)
	return current, nil
}

// stopError classifies a stopped loop: caller cancellation passes through,
// an expired budget becomes a TimeoutError, anything else returns nil.
func (e *Engine) stopError(parent, loop context.Context, reg *Registry, budget time.Duration, current int64) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("verify messages: %w", err)
	}
	if loop.Err() == nil {
		return nil
	}

	outstanding := reg.Outstanding()
	e.logger.Warn("Timeout waiting for new log entries",
		"budget", budget,
		"offset", current,
		"unverified", len(outstanding))
	return &TimeoutError{Budget: budget, Offset: current, Outstanding: outstanding}
}

func (e *Engine) sleep(ctx context.Context) error {
	timer := time.NewTimer(e.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
