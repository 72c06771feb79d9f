package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// RetryPolicy is a capped exponential backoff for transient failures.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy mirrors the 100ms..2s, three-retry shape used for store calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: 100 * time.Millisecond, MaxInterval: 2 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// retryTransient runs fn until it succeeds, fails with a non-transient error,
// or the policy gives up. The last error is returned.
func retryTransient(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy.backOff(ctx), func(err error, wait time.Duration) {
		logrus.WithError(err).WithField("op", op).Debugf("🔁 Retrying in %s", wait)
	})
}
