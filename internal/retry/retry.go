package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediawatch/internal/services"
)

// ErrExhausted marks an operation that failed on every allowed attempt.
var ErrExhausted = errors.New("retries exhausted")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Executor runs operations under a Policy.
type Executor struct {
	policy    Policy
	sleep     SleepFunc
	observer  Observer
	retryable func(error) bool
	now       func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the wait function, typically with a recorder in tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithObserver reports every attempt and outcome to obs.
func WithObserver(obs Observer) Option {
	return func(e *Executor) {
		if obs != nil {
			e.observer = obs
		}
	}
}

// WithRetryable overrides the retry classification.
func WithRetryable(fn func(error) bool) Option {
	return func(e *Executor) {
		if fn != nil {
			e.retryable = fn
		}
	}
}

// New constructs an Executor.
func New(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy:    policy.normalized(),
		sleep:     Sleep,
		observer:  nopObserver{},
		retryable: services.IsRetryable,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Run is Do for operations without a result.
func (e *Executor) Run(ctx context.Context, operation string, fn func(context.Context) error) error {
	_, err := Do(ctx, e, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. A nil executor uses DefaultPolicy.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error)) (T, error) {
	if e == nil {
		e = New(DefaultPolicy())
	}
	start := e.now()
	var zero T
	var lastErr error

	for attempt := 1; ; attempt++ {
		attemptStart := e.now()
		result, err := fn(ctx)
		info := Attempt{
			Operation: operation,
			Number:    attempt,
			Err:       err,
			Elapsed:   e.now().Sub(attemptStart),
		}
		if err == nil {
			e.observer.OnAttempt(ctx, info)
			e.observer.OnOutcome(ctx, Outcome{Operation: operation, Attempts: attempt, Status: StatusSuccess, Elapsed: e.now().Sub(start)})
			return result, nil
		}
		lastErr = err

		if !e.retryable(err) {
			e.observer.OnAttempt(ctx, info)
			e.observer.OnOutcome(ctx, Outcome{Operation: operation, Attempts: attempt, Status: StatusAborted, Err: err, Elapsed: e.now().Sub(start)})
			return zero, err
		}

		if attempt >= e.policy.MaxAttempts {
			e.observer.OnAttempt(ctx, info)
			exhausted := fmt.Errorf("%w: %s failed after %d attempts: %w", ErrExhausted, operation, attempt, lastErr)
			e.observer.OnOutcome(ctx, Outcome{Operation: operation, Attempts: attempt, Status: StatusExhausted, Err: exhausted, Elapsed: e.now().Sub(start)})
			return zero, exhausted
		}

		info.NextDelay = e.policy.Delay(attempt)
		e.observer.OnAttempt(ctx, info)
		if err := e.sleep(ctx, info.NextDelay); err != nil {
			canceled := fmt.Errorf("%s interrupted after %d attempts: %w", operation, attempt, errors.Join(err, lastErr))
			e.observer.OnOutcome(ctx, Outcome{Operation: operation, Attempts: attempt, Status: StatusCanceled, Err: canceled, Elapsed: e.now().Sub(start)})
			return zero, canceled
		}
	}
}
