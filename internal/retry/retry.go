// Package retry provides bounded fixed-interval polling.
package retry

import (
	"context"
	"fmt"
	"time"
)

// ErrExhausted is wrapped by Poll when every attempt failed.
var ErrExhausted = fmt.Errorf("all attempts exhausted")

// Poll runs fn once per interval, up to maxAttempts times, returning nil on
// the first attempt that returns nil. It returns the context error on
// cancellation and an ErrExhausted-wrapping error (carrying the last attempt's
// error) when the bound is reached. Total wall time is bounded by
// maxAttempts * interval.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be at least 1, got %d", maxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, maxAttempts, lastErr)
}
