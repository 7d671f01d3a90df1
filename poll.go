package billingsync

import (
	"context"
	"time"
)

// PollConfig defines the timing of a polling loop.
type PollConfig struct {
	// Interval is the pause between consecutive checks.
	Interval time.Duration
	// Timeout is the total wall-clock budget for the loop.
	Timeout time.Duration

	// Injectable clock and sleeper for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPollConfig provides the production defaults for purchase
// confirmation: a 2s interval inside a 60s budget.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: 2 * time.Second,
		Timeout:  60 * time.Second,
	}
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollConfig().Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultPollConfig().Timeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c
}

// PollResult carries the outcome of a polling loop.
type PollResult[T any] struct {
	// Value is the last value obtained from fn, whether or not it satisfied
	// the predicate.
	Value T
	// TimedOut is true when the budget elapsed before the predicate passed.
	TimedOut  bool
	PollCount int
	Elapsed   time.Duration
}

// Poll calls fn repeatedly until shouldStop approves its value or the
// configured budget elapses. The first call happens immediately, so PollCount
// starts at 1. Errors from fn are propagated as-is; Poll neither swallows nor
// retries them. Cancelling the context aborts the loop with the context
// error — a cancelled loop never reports success.
//
// With a fixed interval I and budget T the number of calls is bounded by
// ceil(T/I)+1.
func Poll[T any](ctx context.Context, cfg PollConfig, fn func(context.Context) (T, error), shouldStop func(T) bool) (PollResult[T], error) {
	cfg = cfg.withDefaults()
	start := cfg.now()

	var result PollResult[T]
	for {
		value, err := fn(ctx)
		result.PollCount++
		result.Elapsed = cfg.now().Sub(start)
		if err != nil {
			return result, err
		}
		result.Value = value

		if shouldStop(value) {
			return result, nil
		}
		if result.Elapsed >= cfg.Timeout {
			result.TimedOut = true
			return result, nil
		}
		if err := cfg.sleep(ctx, cfg.Interval); err != nil {
			result.Elapsed = cfg.now().Sub(start)
			return result, err
		}
	}
}

// sleepContext suspends for d without blocking past context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
