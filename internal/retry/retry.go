// Package retry provides exponential backoff helpers.
//
// Do retries a failing operation. Poll waits for a condition to become true
// within a bounded window; the collector uses it to drain late telemetry
// before asserting expectations.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the backoff schedule.
type Config struct {
	// MaxRetries is the maximum number of attempts. Must be greater than 0.
	MaxRetries int

	// InitialBackoff is the base delay; attempt n waits InitialBackoff * 2^(n-1).
	InitialBackoff time.Duration

	// MaxBackoff caps a single delay. Zero means no cap.
	MaxBackoff time.Duration

	// Jitter adds up to this fraction of the delay, growing with the attempt number.
	Jitter float64
}

// ShouldRetryFunc reports whether err is worth another attempt.
// A nil ShouldRetryFunc retries every error.
type ShouldRetryFunc func(error) bool

// Do executes fn with exponential backoff retry.
// It returns nil on the first success, the error itself when shouldRetry
// rejects it, ctx.Err() on cancellation, or a wrapped last error once all
// attempts are spent.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, calculateBackoff(cfg, attempt)); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// PollConfig bounds a Poll loop.
type PollConfig struct {
	// Window is the total time Poll waits for the condition.
	Window time.Duration
	// Interval is the first delay between checks; it doubles up to MaxInterval.
	Interval time.Duration
	// MaxInterval caps the delay between checks.
	MaxInterval time.Duration
}

// Poll evaluates cond until it returns true or the window closes.
// It returns true if the condition was met. The condition is always evaluated
// at least once, and once more at the end of the window. A cancelled ctx
// returns its error.
func Poll(ctx context.Context, cfg PollConfig, cond func() bool) (bool, error) {
	if cond() {
		return true, nil
	}
	if cfg.Window <= 0 {
		return false, nil
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	deadline := time.Now().Add(cfg.Window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return cond(), nil
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}
		if err := sleep(ctx, wait); err != nil {
			return false, err
		}

		if cond() {
			return true, nil
		}

		interval *= 2
		if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
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

// calculateBackoff computes the delay before the given attempt (1-based retry count).
func calculateBackoff(cfg Config, attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	backoff := time.Duration(multiplier * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 {
		jitterAmount := float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries)
		backoff += time.Duration(jitterAmount)
	}

	return backoff
}
