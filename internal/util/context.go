package util

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Identity is the authenticated caller attached by the auth guard.
type Identity struct {
	UserID string
	Roles  []string
}

// RolesHeader returns the roles joined with commas.
func (i *Identity) RolesHeader() string {
	if i == nil {
		return ""
	}
	return strings.Join(i.Roles, ",")
}

// RequestContext is the per-request state threaded through the pipeline.
// It is never mutated after being stored; use the With* methods to derive
// a new value.
type RequestContext struct {
	RequestID string
	ClientIP  string
	// PeerIP is the direct TCP peer, appended to X-Forwarded-For.
	PeerIP    string
	Scheme    string
	Host      string
	StartTime time.Time
	Identity  *Identity
}

// WithIdentity returns a copy of the context carrying id.
func (rc *RequestContext) WithIdentity(id Identity) *RequestContext {
	out := *rc
	id.Roles = slices.Clone(id.Roles)
	if id.Roles == nil {
		id.Roles = []string{}
	}
	out.Identity = &id
	return &out
}

// Context keys.
type ctxKey string

const (
	ctxKeyRequestContext ctxKey = "request_context"
	ctxKeyRoute          ctxKey = "route"
)

// ContextWithRequestContext stores rc in ctx.
func ContextWithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKeyRequestContext, rc)
}

// RequestContextFromContext extracts the RequestContext from ctx.
func RequestContextFromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(ctxKeyRequestContext).(*RequestContext)
	return rc, ok && rc != nil
}

// RequestIDFromContext extracts the correlation id from ctx.
func RequestIDFromContext(ctx context.Context) string {
	if rc, ok := RequestContextFromContext(ctx); ok {
		return rc.RequestID
	}
	return ""
}

// ContextWithRoute adds the matched route name to the context.
func ContextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute, route)
}

// RouteFromContext extracts the matched route name from context.
func RouteFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRoute).(string); ok {
		return v
	}
	return ""
}
