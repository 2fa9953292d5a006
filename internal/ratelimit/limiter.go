// Package ratelimit provides per-key sliding-window admission control
// for the API Gateway.
package ratelimit

import (
	"time"
)

// Limiter decides whether a request identified by key is admitted.
type Limiter interface {
	// Admit records the request and returns true if it is within the limit.
	// Rejected requests are not recorded.
	Admit(key string) bool
}

// Default limits.
const (
	DefaultRate   = 5.0
	DefaultBurst  = 10
	DefaultWindow = time.Second
)

// Config holds rate limit parameters.
type Config struct {
	// Rate is the nominal requests per second. It is documentary only;
	// the enforced bound is Burst requests per Window.
	Rate float64

	// Burst is the maximum number of requests admitted per key within Window.
	Burst int

	// Window is the length of the sliding window.
	Window time.Duration
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		Rate:   DefaultRate,
		Burst:  DefaultBurst,
		Window: DefaultWindow,
	}
}

// NoopLimiter admits every request.
type NoopLimiter struct{}

// Admit implements Limiter.
func (NoopLimiter) Admit(string) bool {
	return true
}
