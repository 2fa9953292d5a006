package router

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elibrary/apigateway/internal/config"
	"github.com/elibrary/apigateway/internal/util"
)

func newDefaultRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New("/api", config.DefaultRoutes())
	require.NoError(t, err)
	return r
}

func TestRouter_MatchDefaultTable(t *testing.T) {
	t.Parallel()

	r := newDefaultRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantRoute  string
		wantSuffix string
		wantAuth   bool
	}{
		{
			name:       "catalog wildcard",
			method:     http.MethodGet,
			path:       "/api/catalog/books",
			wantRoute:  "catalog",
			wantSuffix: "catalog/books",
		},
		{
			name:       "catalog root",
			method:     http.MethodGet,
			path:       "/api/catalog",
			wantRoute:  "catalog-root",
			wantSuffix: "catalog",
		},
		{
			name:       "catalog root trailing slash",
			method:     http.MethodGet,
			path:       "/api/catalog/",
			wantRoute:  "catalog-root",
			wantSuffix: "catalog",
		},
		{
			name:       "reviews nested trailing slash",
			method:     http.MethodDelete,
			path:       "/api/reviews/5/comments/",
			wantRoute:  "reviews",
			wantSuffix: "reviews/5/comments",
			wantAuth:   true,
		},
		{
			name:       "escaped tail kept verbatim",
			method:     http.MethodGet,
			path:       "/api/favourites/a%2Fb",
			wantRoute:  "favourites",
			wantSuffix: "favourites/a%2Fb",
			wantAuth:   true,
		},
		{
			name:       "auth login is public",
			method:     http.MethodPost,
			path:       "/api/auth/login",
			wantRoute:  "auth",
			wantSuffix: "auth/login",
		},
		{
			name:       "profile me",
			method:     http.MethodGet,
			path:       "/api/profile/me",
			wantRoute:  "profile-me",
			wantSuffix: "profile/me",
			wantAuth:   true,
		},
		{
			name:       "profile me head",
			method:     http.MethodHead,
			path:       "/api/profile/me/",
			wantRoute:  "profile-me",
			wantSuffix: "profile/me",
			wantAuth:   true,
		},
		{
			name:       "files upload",
			method:     http.MethodPost,
			path:       "/api/files/upload",
			wantRoute:  "files-upload",
			wantSuffix: "files/upload",
			wantAuth:   true,
		},
		{
			name:       "search",
			method:     http.MethodGet,
			path:       "/api/search",
			wantRoute:  "search",
			wantSuffix: "search",
			wantAuth:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := r.Match(tt.method, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoute, result.Route.Name)
			assert.Equal(t, tt.wantSuffix, result.Suffix)
			assert.Equal(t, tt.wantAuth, result.Route.AuthRequired)
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	t.Parallel()

	r := newDefaultRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "unknown service", method: http.MethodGet, path: "/api/orders/1"},
		{name: "outside prefix", method: http.MethodGet, path: "/catalog/books"},
		{name: "prefix look-alike", method: http.MethodGet, path: "/apix/catalog"},
		{name: "wrong method on fixed route", method: http.MethodPost, path: "/api/search"},
		{name: "fixed route tail", method: http.MethodGet, path: "/api/profile/me/extra"},
		{name: "prefix only", method: http.MethodGet, path: "/api"},
		{name: "segment look-alike", method: http.MethodGet, path: "/api/catalogue"},
		{name: "options not routed", method: http.MethodOptions, path: "/api/catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := r.Match(tt.method, tt.path)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, util.ErrNotFound))

			var notFound *RouteNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.path, notFound.Path)
		})
	}
}

func TestRouter_FirstMatchWins(t *testing.T) {
	t.Parallel()

	r, err := New("", []config.RouteConfig{
		{Name: "public", Pattern: "/catalog/*", Methods: []string{"GET"}, Upstream: "catalog", UpstreamPath: "catalog/{path}"},
		{Name: "secure", Pattern: "/catalog/books", Methods: []string{"GET"}, Upstream: "catalog", Auth: true},
	})
	require.NoError(t, err)

	result, err := r.Match(http.MethodGet, "/catalog/books")
	require.NoError(t, err)
	assert.Equal(t, "public", result.Route.Name)
	assert.False(t, result.Route.AuthRequired)
	assert.Len(t, r.Routes(), 2)
}

func TestRouter_EmptyUpstreamPathForwardsMatchedPath(t *testing.T) {
	t.Parallel()

	r, err := New("/api/", []config.RouteConfig{
		{Name: "any", Pattern: "/v2/*", Methods: []string{"PUT"}, Upstream: "x"},
	})
	require.NoError(t, err)

	result, err := r.Match(http.MethodPut, "/api/v2/items/9")
	require.NoError(t, err)
	assert.Equal(t, "v2/items/9", result.Suffix)
}

func TestRouter_RootPrefix(t *testing.T) {
	t.Parallel()

	r, err := New("", []config.RouteConfig{
		{Name: "search", Pattern: "/search", Methods: []string{"GET"}, Upstream: "search", UpstreamPath: "search"},
	})
	require.NoError(t, err)

	result, err := r.Match(http.MethodGet, "/search/")
	require.NoError(t, err)
	assert.Equal(t, "search", result.Suffix)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New("/api", []config.RouteConfig{
		{Name: "a", Pattern: "/a", Methods: []string{"GET"}, Upstream: "x"},
		{Name: "a", Pattern: "/b", Methods: []string{"GET"}, Upstream: "x"},
	})
	assert.ErrorContains(t, err, "duplicate route name")

	_, err = New("/api", []config.RouteConfig{
		{Name: "bad", Pattern: "/a/*/b", Methods: []string{"GET"}, Upstream: "x"},
	})
	assert.ErrorContains(t, err, "failed to compile route bad")
}

func TestMatchers(t *testing.T) {
	t.Parallel()

	exact := NewPathMatcher("/search")
	assert.Equal(t, "exact", exact.Type())
	assert.Equal(t, "/search", exact.Pattern())
	ok, _ := exact.Match("/search")
	assert.True(t, ok)
	ok, _ = exact.Match("/search/x")
	assert.False(t, ok)

	wild := NewPathMatcher("/reviews/*")
	assert.Equal(t, "wildcard", wild.Type())
	assert.Equal(t, "/reviews/*", wild.Pattern())
	ok, tail := wild.Match("/reviews/1/2")
	assert.True(t, ok)
	assert.Equal(t, "1/2", tail)
	ok, _ = wild.Match("/reviews")
	assert.False(t, ok)
	ok, _ = wild.Match("/reviewsx/1")
	assert.False(t, ok)

	methods := NewMethodMatcher([]string{"get", "POST"})
	assert.True(t, methods.Match(http.MethodGet))
	assert.True(t, methods.Match(http.MethodHead))
	assert.True(t, methods.Match(http.MethodPost))
	assert.False(t, methods.Match(http.MethodPut))
}
