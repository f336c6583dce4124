package indexer

import (
	"context"
	"fmt"
	"time"
)

// maxRetryDelay caps the doubling backoff; RPC endpoints that stay down
// longer than this are better off failing the run.
const maxRetryDelay = 30 * time.Second

// withRetry runs fn up to maxRetries+1 times with doubling backoff.
// The op label names the RPC call in the terminal error.
func withRetry(ctx context.Context, op string, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return fmt.Errorf("%s: %d attempts: %w", op, attempt+1, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
