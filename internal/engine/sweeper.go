package engine

import (
	"context"
	"time"
)

// RunExpirySweeper calls ProcessPendingOrders every interval until ctx is done.
// Expiry is cooperative: an expired order stays matchable until the next tick.
func (e *MatchingEngine) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ProcessPendingOrders()
		}
	}
}
