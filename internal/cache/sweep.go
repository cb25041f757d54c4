package cache

import (
	"context"
	"time"
)

// StartSweeper runs Sweep every interval until ctx is done. report, if set,
// receives the number of entries removed by each pass. An interval <= 0 keeps
// expiry lazy and starts nothing.
func (c *TimedCache) StartSweeper(ctx context.Context, interval time.Duration, report func(removed int)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := c.Sweep()
				if report != nil {
					report(removed)
				}
			}
		}
	}()
}
