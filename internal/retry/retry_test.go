package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, 5, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPoll_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, 5, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoll_Exhausted(t *testing.T) {
	calls := 0
	sentinel := errors.New("still down")

	err := Poll(context.Background(), time.Millisecond, 4, func(ctx context.Context) error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "still down")
	assert.Equal(t, 4, calls)
}

func TestPoll_TerminatesWithinBound(t *testing.T) {
	interval := 10 * time.Millisecond
	maxAttempts := 5

	start := time.Now()
	err := Poll(context.Background(), interval, maxAttempts, func(ctx context.Context) error {
		return errors.New("never ready")
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	// Bounded: maxAttempts * interval plus scheduling slack.
	assert.Less(t, elapsed, time.Duration(maxAttempts)*interval+100*time.Millisecond)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Poll(ctx, time.Hour, 100, func(ctx context.Context) error {
			calls++
			return errors.New("not ready")
		})
	}()

	// First attempt runs immediately, then the loop parks on the interval.
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPoll_InvalidAttempts(t *testing.T) {
	err := Poll(context.Background(), time.Millisecond, 0, func(ctx context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})

	require.Error(t, err)
}
