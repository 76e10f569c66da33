package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/utils/log"
)

// RetryPolicy is the single backoff policy applied to every upstream call.
// Only transient failures retry; auth and content-filter outcomes surface
// immediately.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
}

// DefaultRetryPolicy matches the upstream contract: three attempts,
// exponential backoff starting at one second, doubling each retry. Three
// attempts means at most two waits (1s, then 2s) before the final failure
// surfaces.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 3, InitialInterval: time.Second}
}

// Do runs op under the policy and returns its final error, if any.
func (p *RetryPolicy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.InitialInterval << p.MaxAttempts

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		log.With(zap.Int("attempt", attempt), zap.Error(err)).Warn("upstream call failed, will retry")
		return err
	}

	return backoff.Retry(wrapped, backoff.WithMaxRetries(backoff.WithContext(b, ctx), p.MaxAttempts-1))
}
