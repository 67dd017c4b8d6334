package retry

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config controls exponential backoff between attempts. Zero values fall
// back to the defaults below.
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Logger         *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	return c
}

// Do runs the operation until it succeeds, the attempts run out, or the
// context is cancelled. Every error is treated as retryable; operations with
// non-retryable failure modes should not go through this package.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		if attempt == cfg.MaxAttempts {
			return lastErr
		}

		delay := cfg.delayFor(attempt)
		if cfg.Logger != nil {
			cfg.Logger.Warn("Operation failed, retrying",
				zap.Error(lastErr),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.MaxAttempts),
				zap.Duration("delay", delay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// delayFor is the backoff for the given 1-based attempt, jittered either way
// so parallel callers do not retry in lockstep.
func (c Config) delayFor(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.Multiplier
		if delay >= float64(c.MaxDelay) {
			delay = float64(c.MaxDelay)
			break
		}
	}

	if c.JitterFraction > 0 {
		spread := delay * c.JitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}
	return time.Duration(delay)
}
