package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/thereayou/residence-chat/internal/database"
)

// RetryPolicy retries store calls that failed because the store was unreachable.
// Any other error is returned at once.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Do runs fn up to Attempts times, Backoff apart. It returns the last error fn
// produced, also when ctx ends the retries early.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Backoff), uint64(attempts-1)),
		ctx,
	)

	var last error
	err := backoff.Retry(func() error {
		last = fn()
		if last != nil && !errors.Is(last, database.ErrUnavailable) {
			return backoff.Permanent(last)
		}
		return last
	}, policy)
	if err != nil {
		return last
	}
	return nil
}
