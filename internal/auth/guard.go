package auth

import (
	"context"

	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/util"
)

// Introspector validates bearer tokens.
type Introspector interface {
	Introspect(ctx context.Context, token string) (*IntrospectionResult, error)
}

// Guard authenticates requests to protected routes.
type Guard struct {
	introspector Introspector
	metrics      *observability.Metrics
	logger       observability.Logger
}

// GuardOption is a functional option for configuring the guard.
type GuardOption func(*Guard)

// WithGuardMetrics sets the metrics recorder.
func WithGuardMetrics(m *observability.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// WithGuardLogger sets the logger.
func WithGuardLogger(logger observability.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a guard backed by introspector.
func NewGuard(introspector Introspector, opts ...GuardOption) *Guard {
	g := &Guard{
		introspector: introspector,
		logger:       observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate validates the Authorization header value and returns the
// caller's identity. Every failure is an Unauthorized *util.GatewayError.
func (g *Guard) Authenticate(ctx context.Context, authorization string) (util.Identity, error) {
	token, err := ExtractBearerToken(authorization)
	if err != nil {
		return util.Identity{}, util.NewUnauthorizedError(util.DetailMissingToken, err)
	}

	result, err := g.introspector.Introspect(ctx, token)
	if err != nil {
		g.metrics.RecordIntrospection(observability.IntrospectionError)
		g.logger.WithContext(ctx).Warn("token introspection failed",
			observability.Error(err),
		)
		return util.Identity{}, util.NewUnauthorizedError(util.DetailInvalidToken, err)
	}

	if !result.Active {
		g.metrics.RecordIntrospection(observability.IntrospectionInactive)
		g.logger.WithContext(ctx).Debug("inactive token rejected")
		return util.Identity{}, util.NewUnauthorizedError(util.DetailInvalidToken, ErrInactiveToken)
	}

	g.metrics.RecordIntrospection(observability.IntrospectionActive)
	return result.Identity(), nil
}
