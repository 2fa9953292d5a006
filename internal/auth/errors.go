package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrMissingToken indicates an absent or malformed Authorization header.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInactiveToken indicates the auth service reported active=false.
	ErrInactiveToken = errors.New("token is not active")

	// ErrInvalidResponse indicates an introspection response that could not
	// be decoded.
	ErrInvalidResponse = errors.New("invalid introspection response")

	// ErrMissingEndpoint indicates a client configured without an endpoint.
	ErrMissingEndpoint = errors.New("missing introspection endpoint")
)

// StatusError is returned when the auth service answers with a non-2xx
// status. It is never retried.
type StatusError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("introspection returned status %d", e.StatusCode)
}
