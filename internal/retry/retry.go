package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Default retry configuration constants.
const (
	// DefaultMaxRetries is the default number of additional attempts.
	DefaultMaxRetries = 2

	// DefaultBaseBackoff is the default backoff before the first retry.
	DefaultBaseBackoff = 300 * time.Millisecond

	// DefaultJitterFactor bounds the random jitter to 10% of the delay.
	DefaultJitterFactor = 0.1

	// MaxJitterFactor is the maximum allowed jitter factor.
	MaxJitterFactor = 1.0
)

// Config contains retry configuration parameters.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	// Zero disables retrying.
	MaxRetries int

	// BaseBackoff is the delay before the first retry; it doubles per attempt.
	BaseBackoff time.Duration

	// MaxBackoff caps the delay. Zero means uncapped.
	MaxBackoff time.Duration

	// JitterFactor is the jitter factor (0.0 to 1.0) applied on top of the
	// exponential delay.
	JitterFactor float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   DefaultMaxRetries,
		BaseBackoff:  DefaultBaseBackoff,
		JitterFactor: DefaultJitterFactor,
	}
}

// GetMaxRetries returns the effective max retries.
func (c Config) GetMaxRetries() int {
	if c.MaxRetries < 0 {
		return 0
	}
	return c.MaxRetries
}

// GetBaseBackoff returns the effective base backoff.
func (c Config) GetBaseBackoff() time.Duration {
	if c.BaseBackoff <= 0 {
		return DefaultBaseBackoff
	}
	return c.BaseBackoff
}

// GetJitterFactor returns the effective jitter factor.
func (c Config) GetJitterFactor() float64 {
	if c.JitterFactor < 0 {
		return 0
	}
	if c.JitterFactor > MaxJitterFactor {
		return MaxJitterFactor
	}
	return c.JitterFactor
}

// RetryableFunc is a function that can be retried. attempt starts at 0.
type RetryableFunc func(ctx context.Context, attempt int) error

// ShouldRetryFunc determines if an error should trigger a retry.
type ShouldRetryFunc func(error) bool

// OnRetryFunc is called before each retry attempt. attempt is the 1-based
// number of the retry about to happen.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options contains optional retry behavior configuration.
type Options struct {
	// ShouldRetry determines if an error should trigger a retry.
	// If nil, all errors are retried.
	ShouldRetry ShouldRetryFunc

	// OnRetry is called before each retry attempt.
	OnRetry OnRetryFunc

	// Sleep replaces the backoff wait. Defaults to a context-aware timer.
	Sleep SleepFunc
}

// Do executes fn, retrying failures accepted by ShouldRetry up to
// cfg.MaxRetries additional times with exponential backoff.
// The error of the last attempt is returned.
func Do(ctx context.Context, cfg Config, fn RetryableFunc, opts *Options) error {
	maxRetries := cfg.GetMaxRetries()
	baseBackoff := cfg.GetBaseBackoff()
	jitterFactor := cfg.GetJitterFactor()

	sleep := sleepContext
	if opts != nil && opts.Sleep != nil {
		sleep = opts.Sleep
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Check context before each attempt
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if opts != nil && opts.ShouldRetry != nil && !opts.ShouldRetry(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt < maxRetries {
			backoff := CalculateBackoff(attempt, baseBackoff, cfg.MaxBackoff, jitterFactor)

			if opts != nil && opts.OnRetry != nil {
				opts.OnRetry(attempt+1, lastErr, backoff)
			}

			if err := sleep(ctx, backoff); err != nil {
				return lastErr
			}
		}
	}

	return lastErr
}

// CalculateBackoff returns base * 2^attempt plus a random jitter in
// [0, jitterFactor * base * 2^attempt), capped at maxBackoff when positive.
func CalculateBackoff(attempt int, base, maxBackoff time.Duration, jitterFactor float64) time.Duration {
	backoff := float64(base) * math.Pow(2, float64(attempt))

	//nolint:gosec // G404: jitter for retry timing is not security-sensitive
	jitter := backoff * jitterFactor * rand.Float64()
	backoff += jitter

	if maxBackoff > 0 && backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	return time.Duration(backoff)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
