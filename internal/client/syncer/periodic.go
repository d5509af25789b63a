package syncer

import (
	"context"
	"errors"
	"time"
)

// RunEvery runs a pass every interval until ctx ends. Passes run whether or
// not the authority is reachable: an unreachable authority only costs the
// pull, while queued file store uploads keep draining.
func (e *Engine) RunEvery(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !e.authority.IsOnline(ctx) {
				e.logger.Debug(ctx, "authority offline, scheduled sync limited to the queue")
			}
			if _, err := e.Run(ctx); err != nil && !errors.Is(err, ErrInProgress) && ctx.Err() == nil {
				e.logger.Warn(ctx, "scheduled sync failed", "error", err)
			}
		}
	}
}
