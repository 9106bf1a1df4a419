package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Predicate decides whether an error returned by an attempt should be
// retried. Returning false surfaces the error immediately.
type Predicate func(error) bool

// Policy configures one retry.Do call. MinInterval, MaxInterval, and
// Multiplier map directly onto backoff.ExponentialBackOff; MaxElapsed
// of zero means retry until the context is canceled.
type Policy struct {
	// Retryable decides whether an error should be retried. A nil
	// Retryable treats every error as retryable.
	Retryable Predicate

	// OnRetry, if set, is called before each sleep with the attempt
	// number (starting at 1) and the error that triggered the retry —
	// the hook a caller uses to observe every failed attempt (the
	// supervisor logs a warning from it) without retry.Do depending on
	// the observer.
	OnRetry func(attempt int, err error)

	MinInterval time.Duration
	MaxInterval time.Duration
	MaxElapsed  time.Duration
	Multiplier  float64
}

// defaultPolicy mirrors the teacher's transport defaults
// (options.go's defaultOptions: 1s initial delay, ×2.0 multiplier).
func defaultPolicy() Policy {
	return Policy{
		MinInterval: time.Second,
		MaxInterval: 30 * time.Second,
		Multiplier:  2.0,
	}
}

// errStop wraps a non-retryable error so backoff.Retry stops
// immediately instead of continuing to back off.
type errStop struct{ err error }

func (e *errStop) Error() string { return e.err.Error() }
func (e *errStop) Unwrap() error { return e.err }

// Do runs fn, retrying on retryable errors using exponential backoff
// bounded by policy, until fn succeeds, a non-retryable error is
// returned, or ctx is canceled.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if policy.MinInterval <= 0 {
		d := defaultPolicy()
		policy.MinInterval = d.MinInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = policy.MinInterval * 30
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.MinInterval
	b.MaxInterval = policy.MaxInterval
	b.Multiplier = policy.Multiplier
	b.MaxElapsedTime = policy.MaxElapsed
	bctx := backoff.WithContext(b, ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(&errStop{err: err})
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}
		return err
	}

	err := backoff.Retry(op, bctx)
	if err == nil {
		return nil
	}

	var stop *errStop
	if errors.As(err, &stop) {
		return stop.err
	}
	return err
}

// Forever is a convenience Policy for components that must retry
// indefinitely: backoff 5s → 30s, multiplier 1.5, per spec.md §6. The
// supervisor's proxy-open step builds an equivalent Policy itself (so
// its bounds can be overridden in tests) rather than calling Forever.
func Forever(retryable Predicate, onRetry func(attempt int, err error)) Policy {
	return Policy{
		MinInterval: 5 * time.Second,
		MaxInterval: 30 * time.Second,
		Multiplier:  1.5,
		Retryable:   retryable,
		OnRetry:     onRetry,
	}
}
