package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls exponential backoff for one service.
type RetryConfig struct {
	Service     string
	MaxAttempts int           // total attempts, first try included
	BaseDelay   time.Duration // delay before the first retry; doubles per attempt
	MaxDelay    time.Duration
	Jitter      float64 // ± fraction of each delay
}

// DefaultRetryConfig suits the public geocoding APIs.
func DefaultRetryConfig(service string) RetryConfig {
	return RetryConfig{
		Service:     service,
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.25,
	}
}

// Do calls fn until it succeeds, returns a non-transient error, runs out of
// attempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt >= cfg.MaxAttempts {
			return err
		}

		delay := cfg.backoff(attempt)
		zap.L().Warn("resilience: retrying",
			zap.String("service", cfg.Service),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// backoff returns the delay after the given failed attempt (1-based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := c.BaseDelay << (attempt - 1)
	if c.MaxDelay > 0 && (d > c.MaxDelay || d <= 0) {
		d = c.MaxDelay
	}
	if c.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * c.Jitter * float64(d))
	}
	if d < 0 {
		return 0
	}
	return d
}
