// Package middleware provides the gin middleware chain of the API Gateway.
//
// The gateway installs the middlewares in this order:
//
//	Recovery -> RequestID -> Logging -> Metrics -> CORS -> RateLimit
//
// RequestID runs before anything that can reject a request, so every
// response, including errors, carries the correlation header. Error
// responses are rendered by AbortWithError as {"detail": "..."}.
package middleware
