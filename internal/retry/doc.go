// Package retry provides exponential backoff retry functionality for
// the API Gateway.
//
// The same strategy wraps both the token introspection call and the
// upstream forwarding call. Only failures accepted by the ShouldRetry
// predicate are retried; callers pass IsNetworkError so that HTTP error
// statuses are never retried.
//
// # Usage
//
//	cfg := retry.Config{MaxRetries: 2, BaseBackoff: 300 * time.Millisecond, JitterFactor: 0.1}
//	err := retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
//	    return callExternalService(ctx)
//	}, &retry.Options{ShouldRetry: retry.IsNetworkError})
//
// The delay before retry n (1-based) is BaseBackoff * 2^(n-1) plus up to
// JitterFactor of that value.
package retry
