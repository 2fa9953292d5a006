package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/retry"
	"github.com/elibrary/apigateway/internal/util"
)

const (
	// DefaultTimeout bounds a single introspection attempt.
	DefaultTimeout = 8 * time.Second

	// maxResponseBytes caps the introspection response body.
	maxResponseBytes = 1 << 20
)

// UserID is a user identifier that the auth service may encode either as
// a JSON string or as a JSON number.
type UserID string

// UnmarshalJSON accepts a string, a number or null.
func (u *UserID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id must be a string or a number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

// IntrospectionResult is the auth service's verdict on a token.
type IntrospectionResult struct {
	Active bool     `json:"active"`
	UserID UserID   `json:"user_id"`
	Roles  []string `json:"roles"`
	// Exp is the expiry in epoch seconds, when reported.
	Exp *int64 `json:"exp"`
}

// Identity converts the result into the identity attached to requests.
func (r *IntrospectionResult) Identity() util.Identity {
	roles := r.Roles
	if roles == nil {
		roles = []string{}
	}
	return util.Identity{UserID: string(r.UserID), Roles: roles}
}

type introspectionRequest struct {
	Token string `json:"token"`
}

// ClientConfig holds configuration for the introspection client.
type ClientConfig struct {
	// Endpoint is the full introspection URL.
	Endpoint string

	// Timeout bounds each attempt independently.
	Timeout time.Duration

	// Retry is applied to network-level failures only.
	Retry retry.Config

	// HTTPClient is the shared pooled client (optional).
	HTTPClient *http.Client

	// Logger is the logger to use (optional).
	Logger observability.Logger

	// Sleep replaces the backoff wait (optional).
	Sleep retry.SleepFunc
}

// IntrospectionClient calls the auth service's introspection endpoint.
type IntrospectionClient struct {
	endpoint   string
	timeout    time.Duration
	retry      retry.Config
	httpClient *http.Client
	logger     observability.Logger
	sleep      retry.SleepFunc
}

// NewIntrospectionClient creates a new introspection client.
func NewIntrospectionClient(cfg *ClientConfig) (*IntrospectionClient, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &IntrospectionClient{
		endpoint:   cfg.Endpoint,
		timeout:    timeout,
		retry:      cfg.Retry,
		httpClient: httpClient,
		logger:     logger,
		sleep:      cfg.Sleep,
	}, nil
}

// Introspect validates token against the auth service. Network failures
// are retried; a non-2xx status is returned as *StatusError immediately.
func (c *IntrospectionClient) Introspect(ctx context.Context, token string) (*IntrospectionResult, error) {
	payload, err := json.Marshal(introspectionRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to encode introspection request: %w", err)
	}

	var result *IntrospectionResult
	err = retry.Do(ctx, c.retry, func(ctx context.Context, _ int) error {
		res, attemptErr := c.introspectOnce(ctx, payload)
		if attemptErr != nil {
			return attemptErr
		}
		result = res
		return nil
	}, &retry.Options{
		ShouldRetry: retry.IsNetworkError,
		Sleep:       c.sleep,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.logger.WithContext(ctx).Debug("retrying token introspection",
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// introspectOnce performs a single attempt bounded by the per-attempt
// timeout.
func (c *IntrospectionClient) introspectOnce(ctx context.Context, payload []byte) (*IntrospectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID := util.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var result IntrospectionResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return &result, nil
}
