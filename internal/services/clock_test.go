package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thereayou/residence-chat/internal/database"
)

func TestClock_StrictlyIncreasingWhenWallClockStalls(t *testing.T) {
	req := require.New(t)
	frozen := time.Date(2026, 3, 1, 8, 0, 0, 123456789, time.UTC)
	clock := &Clock{now: func() time.Time { return frozen }}

	first := clock.Next()
	second := clock.Next()
	req.Equal(frozen.Truncate(time.Microsecond), first)
	req.Equal(first.Add(time.Microsecond), second)
}

func TestClock_SurvivesWallClockGoingBack(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := &Clock{now: func() time.Time { return now }}

	first := clock.Next()
	now = now.Add(-time.Hour)
	req.True(clock.Next().After(first))
}

func TestRetryPolicy(t *testing.T) {
	unavailable := errors.Join(database.ErrUnavailable, errors.New("connection reset"))

	t.Run("retries unavailable until success", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{Attempts: 3}.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return unavailable
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{Attempts: 2}.Do(context.Background(), func() error {
			calls++
			return unavailable
		})
		require.ErrorIs(t, err, database.ErrUnavailable)
		require.Equal(t, 2, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{Attempts: 5}.Do(context.Background(), func() error {
			calls++
			return database.ErrNotFound
		})
		require.ErrorIs(t, err, database.ErrNotFound)
		require.Equal(t, 1, calls)
	})

	t.Run("waits between attempts", func(t *testing.T) {
		calls := 0
		start := time.Now()
		err := RetryPolicy{Attempts: 3, Backoff: 20 * time.Millisecond}.Do(context.Background(), func() error {
			calls++
			return unavailable
		})
		require.ErrorIs(t, err, database.ErrUnavailable)
		require.Equal(t, 3, calls)
		require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("stops when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := RetryPolicy{Attempts: 5, Backoff: time.Hour}.Do(ctx, func() error {
			calls++
			cancel()
			return unavailable
		})
		require.ErrorIs(t, err, database.ErrUnavailable)
		require.Equal(t, 1, calls)
	})
}
