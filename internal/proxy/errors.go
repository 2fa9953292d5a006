package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for proxy operations.
var (
	// ErrUnknownUpstream indicates a target naming an unconfigured upstream.
	ErrUnknownUpstream = errors.New("unknown upstream")

	// ErrAttemptTimeout indicates an attempt that exceeded the per-attempt
	// timeout before response headers arrived.
	ErrAttemptTimeout = errors.New("upstream attempt timed out")

	// ErrStreamAborted indicates the response relay stopped after the
	// status line was already sent.
	ErrStreamAborted = errors.New("response stream aborted")
)

// ProxyError represents a forwarding failure with details.
type ProxyError struct {
	Op       string // Operation that failed
	Upstream string // Upstream name if applicable
	Target   string // Target URL if applicable
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("proxy error [%s] upstream=%s target=%s: %v",
			e.Op, e.Upstream, e.Target, e.Cause)
	}
	return fmt.Sprintf("proxy error [%s] upstream=%s: %v", e.Op, e.Upstream, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// attemptTimeoutError reports a per-attempt timeout as a network timeout
// so that it is retried. It must not unwrap to the context.Canceled left
// by the attempt's cancellation, which is never retried.
type attemptTimeoutError struct {
	cause error
}

func (e *attemptTimeoutError) Error() string {
	return fmt.Sprintf("%v: %v", ErrAttemptTimeout, e.cause)
}

func (e *attemptTimeoutError) Is(target error) bool {
	return target == ErrAttemptTimeout
}

func (e *attemptTimeoutError) Timeout() bool   { return true }
func (e *attemptTimeoutError) Temporary() bool { return true }
