// Package retry re-runs storage calls that failed with domain.ErrStorageUnavailable.
// Every other error is returned on the first attempt.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 2 * time.Second}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialBackoff
	if p.MaxBackoff > 0 {
		eb.MaxInterval = p.MaxBackoff
	}
	eb.MaxElapsedTime = 0

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// Do calls fn until it succeeds, fails with a non-storage error, or the policy runs out
// of attempts.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, p.backOff(ctx))
}

// Value is Do for calls returning a result.
func Value[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
