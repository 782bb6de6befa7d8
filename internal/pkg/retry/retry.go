// Package retry holds the one backoff policy shared by the search and model
// gateways, so the two cannot drift apart.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Do runs op with exponential backoff: at most 1+MaxRetries attempts, base
// delay doubling per attempt and capped at MaxDelay. Errors the retryable
// predicate rejects stop the loop immediately. Context cancellation is
// honored between attempts.
func Do[T any](ctx context.Context, policy Policy, retryable func(error) bool, op func() (T, error)) (T, error) {
	attempt := func() (T, error) {
		value, err := op()
		if err == nil {
			return value, nil
		}
		if retryable != nil && !retryable(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.BaseDelay
	expo.MaxInterval = policy.MaxDelay
	expo.Multiplier = 2

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(policy.MaxRetries+1)),
	)
}
