package resilience

import (
	"context"
	"time"
)

// Retry runs fn up to maxRetries+1 times, sleeping delay between attempts,
// stopping early on success or when ctx is done. The orchestrator's RETRY
// degradation strategy does not call it; dispatchCall runs its own loop.
func Retry(ctx context.Context, maxRetries int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
