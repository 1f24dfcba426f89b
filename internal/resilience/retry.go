package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig is the retry policy for a single page request. The delay
// doubles per attempt from InitialBackoff up to MaxBackoff.
type RetryConfig struct {
	// MaxAttempts counts the first try; 1 disables retries.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// JitterFraction spreads each delay by up to ±fraction of itself.
	JitterFraction float64

	// ShouldRetry decides whether an error earns another attempt.
	// Defaults to IsRetryableStatus.
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, err error)
}

// DefaultRetryConfig returns the retry policy used for page fetches: one
// retry of a throttled or overloaded response.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
		ShouldRetry:    IsRetryableStatus,
	}
}

// DoVal calls fn until it succeeds, the policy gives up or ctx ends. The
// last error is returned with the zero value when every attempt fails.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= cfg.MaxAttempts || ctx.Err() != nil || !cfg.ShouldRetry(err) {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.delay(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = def.ShouldRetry
	}
	return c
}

// delay is the wait before attempt+1. A Retry-After hint from the server
// replaces the computed backoff when it is longer. Both are capped at
// MaxBackoff.
func (c RetryConfig) delay(attempt int, err error) time.Duration {
	d := c.MaxBackoff
	if shift := attempt - 1; shift < 32 {
		d = min(c.InitialBackoff<<shift, c.MaxBackoff)
	}
	if c.JitterFraction > 0 {
		spread := float64(d) * c.JitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}

	var te *TransientError
	if errors.As(err, &te) && te.RetryAfter > d {
		d = te.RetryAfter
	}
	return min(max(d, 0), c.MaxBackoff)
}

// RetryLogger returns an OnRetry callback that logs each retry of a page.
func RetryLogger(pageURL string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Debug("resilience: retrying page",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
