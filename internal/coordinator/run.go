package coordinator

import (
	"context"
	"errors"
	"time"
)

// StopSignal is checked before each batch; when it reports true the loop
// exits cleanly after the current batch finishes, per the "stop after
// current batch" cancellation contract.
type StopSignal interface {
	Stop() bool
}

// Run drives RunBatch until stop reports true or the queue is exhausted.
// BatchInterval, if set, is slept between batches (skipped on the very
// first batch and skipped when stop is already signaled).
func (c *Coordinator) Run(ctx context.Context, stop StopSignal) error {
	first := true

	for {
		if stop.Stop() {
			c.log.Info("stop requested, ending after current batch", "run_id", c.runID)
			return nil
		}

		if !first && c.cfg.BatchInterval > 0 {
			select {
			case <-time.After(c.cfg.BatchInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		first = false

		err := c.RunBatch(ctx)
		if errors.Is(err, ErrQueueExhausted) {
			c.log.Info("crawl queue exhausted", "run_id", c.runID)
			return nil
		}
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
