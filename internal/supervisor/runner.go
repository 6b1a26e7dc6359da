// internal/supervisor/runner.go
package supervisor

import (
	"context"
	"time"
)

// Run starts the ticker loop and emits PollResult on the provided channel.
// One goroutine. No overlap. No retries.
func (s *Supervisor) Run(ctx context.Context, out chan<- PollResult) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- s.PollOnce():
			case <-ctx.Done():
				return
			}
		}
	}
}
