package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy runs a remote operation up to Attempts times. After a failed
// attempt n (counted from 0) it waits 2^n * BaseDelay before the next one.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Retryable func(error) bool

	// Limiter, when set, throttles every attempt.
	Limiter *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy returns a policy using IsRetryable as its predicate.
func NewRetryPolicy(attempts int, baseDelay time.Duration, limiter *rate.Limiter) *RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryPolicy{
		Attempts:  attempts,
		BaseDelay: baseDelay,
		Retryable: IsRetryable,
		Limiter:   limiter,
	}
}

// WithAttempts returns a copy with a different budget, sharing the limiter.
func (p *RetryPolicy) WithAttempts(attempts int) *RetryPolicy {
	cp := *p
	if attempts < 1 {
		attempts = 1
	}
	cp.Attempts = attempts
	return &cp
}

// Backoff is the wait after failed attempt n.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Do invokes op until it succeeds, returns a non-retryable error, or the
// budget is spent. The last error is returned unchanged.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return joinCtx(lastErr, err)
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts-1 {
			break
		}
		if err := p.wait(ctx, p.Backoff(attempt)); err != nil {
			return joinCtx(lastErr, err)
		}
	}
	return lastErr
}

// Retry is Do for operations that produce a value.
func Retry[T any](ctx context.Context, p *RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (p *RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func joinCtx(last, ctxErr error) error {
	if last == nil {
		return ctxErr
	}
	return errors.Join(last, ctxErr)
}
