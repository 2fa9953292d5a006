package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextRoundTrip(t *testing.T) {
	t.Parallel()

	rc := &RequestContext{RequestID: "req-1", ClientIP: "10.0.0.1"}
	ctx := ContextWithRequestContext(context.Background(), rc)

	got, ok := RequestContextFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestRequestContextFromContext_Missing(t *testing.T) {
	t.Parallel()

	_, ok := RequestContextFromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRequestContext_WithIdentity(t *testing.T) {
	t.Parallel()

	roles := []string{"reader", "admin"}
	rc := &RequestContext{RequestID: "req-1"}
	withID := rc.WithIdentity(Identity{UserID: "42", Roles: roles})

	assert.Nil(t, rc.Identity, "original context must stay untouched")
	require.NotNil(t, withID.Identity)
	assert.Equal(t, "42", withID.Identity.UserID)
	assert.Equal(t, "reader,admin", withID.Identity.RolesHeader())

	roles[0] = "mutated"
	assert.Equal(t, "reader", withID.Identity.Roles[0])
}

func TestRequestContext_WithIdentityDefaultsRoles(t *testing.T) {
	t.Parallel()

	rc := (&RequestContext{}).WithIdentity(Identity{UserID: "7"})
	assert.NotNil(t, rc.Identity.Roles)
	assert.Empty(t, rc.Identity.RolesHeader())
}

func TestRouteContext(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRoute(context.Background(), "catalog")
	assert.Equal(t, "catalog", RouteFromContext(ctx))
	assert.Empty(t, RouteFromContext(context.Background()))
}
