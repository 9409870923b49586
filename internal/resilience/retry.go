package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned for an attempt that did not finish before Policy.Timeout.
var ErrTimeout = errors.New("operation timed out")

const (
	defaultTimeout   = 5 * time.Second
	defaultAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 2 * time.Second
)

// Operation is a remote call guarded by Do. It must honor ctx.
type Operation[T any] func(ctx context.Context) (T, error)

// Policy configures timeout and retry behavior. Zero fields take defaults.
type Policy struct {
	Timeout   time.Duration
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable reports whether a failed attempt may be retried.
	// Nil retries every failure.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt number next.
	OnRetry func(next int, delay time.Duration, err error)
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-indexed):
// BaseDelay doubled per attempt, capped at MaxDelay.
func (p Policy) Delay(failed int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay
	for i := 1; i < failed; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs op up to p.Attempts times. Each attempt is raced against
// p.Timeout. The last failure is returned once the budget is spent or a
// failure is not retryable. Cancelling ctx stops the loop immediately.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	p = p.withDefaults()
	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		v, err := runAttempt(ctx, p.Timeout, op)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.Attempts {
			break
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
	return zero, lastErr
}

// WithTimeout is Do with an explicit timeout and attempt budget.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, attempts int, op Operation[T]) (T, error) {
	return Do(ctx, Policy{Timeout: timeout, Attempts: attempts}, op)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	var zero T
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(actx)
		done <- result{v: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return r.v, r.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
