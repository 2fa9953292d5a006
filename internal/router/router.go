package router

import (
	"fmt"
	"strings"

	"github.com/elibrary/apigateway/internal/config"
	"github.com/elibrary/apigateway/internal/util"
)

// pathPlaceholder is replaced by the wildcard tail in upstream paths.
const pathPlaceholder = "{path}"

// Router matches inbound requests against an immutable route table.
// Routes are tried in declaration order and the first match wins.
type Router struct {
	prefix string
	routes []*CompiledRoute
}

// CompiledRoute is a pre-compiled route for efficient matching.
type CompiledRoute struct {
	Name          string
	Upstream      string
	UpstreamPath  string
	AuthRequired  bool
	PathMatcher   PathMatcher
	MethodMatcher *MethodMatcher
}

// MatchResult contains the result of a route match.
type MatchResult struct {
	Route *CompiledRoute
	// Suffix is the upstream path, relative to the upstream base URL,
	// without a leading slash. Escaping is preserved as received.
	Suffix string
}

// New compiles routes mounted under apiPrefix ("" mounts at the root).
func New(apiPrefix string, routes []config.RouteConfig) (*Router, error) {
	r := &Router{
		prefix: strings.TrimSuffix(apiPrefix, "/"),
		routes: make([]*CompiledRoute, 0, len(routes)),
	}

	names := make(map[string]bool, len(routes))
	for _, rc := range routes {
		if names[rc.Name] {
			return nil, fmt.Errorf("duplicate route name: %s", rc.Name)
		}
		names[rc.Name] = true

		if err := config.ValidatePattern(rc.Pattern); err != nil {
			return nil, fmt.Errorf("failed to compile route %s: %w", rc.Name, err)
		}

		r.routes = append(r.routes, &CompiledRoute{
			Name:          rc.Name,
			Upstream:      rc.Upstream,
			UpstreamPath:  rc.UpstreamPath,
			AuthRequired:  rc.Auth,
			PathMatcher:   NewPathMatcher(rc.Pattern),
			MethodMatcher: NewMethodMatcher(rc.Methods),
		})
	}

	return r, nil
}

// Routes returns the compiled routes in match order.
func (r *Router) Routes() []*CompiledRoute {
	return r.routes
}

// Match finds the route for method and the escaped request path. A path
// with a trailing slash matches the same route as the path without it.
func (r *Router) Match(method, escapedPath string) (*MatchResult, error) {
	rel, ok := r.relativePath(escapedPath)
	if ok {
		for _, route := range r.routes {
			matched, tail := route.PathMatcher.Match(rel)
			if !matched || !route.MethodMatcher.Match(method) {
				continue
			}
			return &MatchResult{
				Route:  route,
				Suffix: route.expand(rel, tail),
			}, nil
		}
	}

	return nil, util.NewGatewayError(util.KindNotFound, util.DetailNotFound,
		&RouteNotFoundError{Method: method, Path: escapedPath})
}

// relativePath strips the API prefix and a single trailing slash.
func (r *Router) relativePath(path string) (string, bool) {
	if r.prefix != "" {
		rest, ok := strings.CutPrefix(path, r.prefix)
		if !ok || (rest != "" && rest[0] != '/') {
			return "", false
		}
		path = rest
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	if path == "" {
		path = "/"
	}
	return path, true
}

// expand builds the upstream path suffix for a match.
func (c *CompiledRoute) expand(rel, tail string) string {
	if c.UpstreamPath == "" {
		return strings.TrimPrefix(rel, "/")
	}
	return strings.TrimPrefix(strings.ReplaceAll(c.UpstreamPath, pathPlaceholder, tail), "/")
}

// RouteNotFoundError describes a request that matched no route.
type RouteNotFoundError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for %s %s", e.Method, e.Path)
}
