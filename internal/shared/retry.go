package shared

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds RetryOnConflict.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy suits short quota writes.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 10 * time.Millisecond,
	MaxInterval:     200 * time.Millisecond,
	MaxElapsed:      2 * time.Second,
}

// RetryOnConflict runs op until it succeeds, fails with a non-conflict
// error, or the policy or ctx gives up. The last error is returned.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = policy.MaxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsConflictError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
