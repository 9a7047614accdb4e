package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds RetryWithBackoff: at most MaxRetries retries after the
// first attempt, the delay starting at InitialDelay and doubling each time.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// RetryWithBackoff calls op until it succeeds, returns an error wrapped with
// backoff.Permanent, the retries are exhausted or ctx is done.
func RetryWithBackoff(ctx context.Context, policy RetryPolicy, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = policy.InitialDelay << 6
	bo.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(bo, uint64(max(policy.MaxRetries, 0)))
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
