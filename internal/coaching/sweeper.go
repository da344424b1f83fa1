package coaching

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the idle sweeper runs.
const DefaultSweepInterval = time.Minute

// EvictCallback is called for each session removed by the sweeper.
type EvictCallback func(userID string)

// StartSweeper runs a background goroutine that periodically evicts sessions
// idle for longer than idle. It stops when ctx is cancelled.
func StartSweeper(ctx context.Context, e *Engine, idle, interval time.Duration, onEvict EvictCallback) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		e.logger.Info("Session sweeper started", "interval", interval, "idle_ttl", idle)

		for {
			select {
			case <-ticker.C:
				sweepIdle(e, idle, onEvict)
			case <-ctx.Done():
				e.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepIdle(e *Engine, idle time.Duration, onEvict EvictCallback) {
	evicted := e.sessions.Sweep(idle, e.clock())
	if len(evicted) == 0 {
		return
	}

	for _, userID := range evicted {
		if onEvict != nil {
			onEvict(userID)
		}
	}
	e.logger.Info("Idle coaching sessions evicted", "count", len(evicted), "remaining", e.sessions.Len())
}
