// Package retry runs an operation with bounded attempts and linear backoff,
// honoring server-provided wait hints.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxAttemptsExceeded wraps the last failure once attempts run out.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

type Config struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int `yaml:"max_attempts"`
	// BaseDelay is multiplied by the attempt number to get the wait.
	BaseDelay time.Duration `yaml:"base_delay"`
	// MaxDelay caps every wait, including server hints.
	MaxDelay time.Duration `yaml:"max_delay"`

	// IsRetryable defaults to retrying every error.
	IsRetryable func(error) bool `yaml:"-"`
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Hinter is implemented by errors that carry an upstream Retry-After.
type Hinter interface {
	RetryAfterHint() (time.Duration, bool)
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.IsRetryable == nil {
		c.IsRetryable = func(error) bool { return true }
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return c
}

// Delay returns the wait before the attempt following a failed attempt
// (1-based) that returned err.
func (c Config) Delay(attempt int, err error) time.Duration {
	c = c.withDefaults()
	d := c.BaseDelay * time.Duration(attempt)

	var h Hinter
	if errors.As(err, &h) {
		if hint, ok := h.RetryAfterHint(); ok {
			d = hint
		}
	}
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached. fn receives the 1-based attempt number.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled: %w", lastErr)
			}
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if err := cfg.Sleep(ctx, cfg.Delay(attempt, err)); err != nil {
			return fmt.Errorf("retry cancelled: %w", lastErr)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
