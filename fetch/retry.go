package fetch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
)

// Policy decides how often and how long to wait before repeating a failed call.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(error) bool
	// Sleep waits for d or until ctx is done, tests swap it for a recorder.
	Sleep   func(ctx context.Context, d time.Duration) error
	OnRetry func(attempt int, wait time.Duration, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 10,
		Backoff:     Exponential(2*time.Second, 10*time.Second, 120*time.Second),
		Retryable:   etlerr.Retryable,
		Sleep:       SleepContext,
	}
}

// Exponential waits multiplier * 2^(attempt-1), clamped to [minWait, maxWait].
func Exponential(multiplier, minWait, maxWait time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		wait := time.Duration(float64(multiplier) * math.Pow(2, float64(attempt-1)))
		if wait < minWait {
			wait = minWait
		}
		if maxWait > 0 && wait > maxWait {
			wait = maxWait
		}
		return wait
	}
}

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, returns a non retryable error, or the attempts are used up.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = etlerr.Retryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}
