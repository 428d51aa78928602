package worker

import (
	"context"
	"time"
)

// sleepForCrawlDelay blocks for d, or until ctx is cancelled, whichever
// comes first. d <= 0 is a no-op.
func sleepForCrawlDelay(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
