// Package util provides shared types for the API Gateway: the error
// taxonomy surfaced to clients and the per-request context.
//
// # Error Conventions
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrUnauthorized.
//   - Structured error types for context-rich errors that carry
//     additional fields (GatewayError, ConfigError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error that is rendered to the client.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindRateLimited
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUpstream
	KindPayloadTooLarge
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "RateLimited"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindUpstream:
		return "UpstreamError"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	default:
		return "Internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Client-facing detail messages.
const (
	DetailRateLimited     = "Too Many Requests"
	DetailMissingToken    = "Missing bearer token"
	DetailInvalidToken    = "Invalid or inactive token"
	DetailForbidden       = "Forbidden"
	DetailNotFound        = "Not Found"
	DetailUpstream        = "Upstream error"
	DetailPayloadTooLarge = "Payload Too Large"
	DetailInternal        = "Internal Server Error"
)

// Sentinel errors, one per kind.
var (
	ErrRateLimited     = &GatewayError{Kind: KindRateLimited, Detail: DetailRateLimited}
	ErrUnauthorized    = &GatewayError{Kind: KindUnauthorized, Detail: DetailInvalidToken}
	ErrForbidden       = &GatewayError{Kind: KindForbidden, Detail: DetailForbidden}
	ErrNotFound        = &GatewayError{Kind: KindNotFound, Detail: DetailNotFound}
	ErrUpstream        = &GatewayError{Kind: KindUpstream, Detail: DetailUpstream}
	ErrPayloadTooLarge = &GatewayError{Kind: KindPayloadTooLarge, Detail: DetailPayloadTooLarge}
)

// GatewayError is an error with a client-facing kind and detail.
// Two GatewayErrors match under errors.Is when their kinds are equal.
type GatewayError struct {
	Kind   Kind
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	return ok && t.Kind == e.Kind
}

// Status returns the HTTP status code of the error.
func (e *GatewayError) Status() int {
	return e.Kind.Status()
}

// NewGatewayError creates a GatewayError of the given kind.
func NewGatewayError(kind Kind, detail string, cause error) *GatewayError {
	return &GatewayError{Kind: kind, Detail: detail, Cause: cause}
}

// NewUnauthorizedError creates an Unauthorized error with a detail and cause.
func NewUnauthorizedError(detail string, cause error) *GatewayError {
	return NewGatewayError(KindUnauthorized, detail, cause)
}

// NewUpstreamError creates an UpstreamError wrapping cause.
func NewUpstreamError(cause error) *GatewayError {
	return NewGatewayError(KindUpstream, DetailUpstream, cause)
}

// AsGatewayError converts any error into a GatewayError.
// Errors that are not GatewayErrors become KindInternal.
func AsGatewayError(err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return NewGatewayError(KindInternal, DetailInternal, err)
}

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}
