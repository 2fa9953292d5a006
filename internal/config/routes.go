package config

import (
	"net/http"
	"slices"
)

// resourceMethods are the methods accepted by service-prefix routes.
var resourceMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// DefaultRoutes returns the built-in route table. Routes are matched in
// order; the first match wins.
func DefaultRoutes() []RouteConfig {
	routes := make([]RouteConfig, 0, 12)
	routes = append(routes, resourceRoutes("auth", UpstreamAuth, false)...)
	routes = append(routes, resourceRoutes("catalog", UpstreamCatalog, false)...)
	routes = append(routes, resourceRoutes("reviews", UpstreamReview, true)...)
	routes = append(routes, resourceRoutes("favourites", UpstreamFavourites, true)...)
	routes = append(routes,
		RouteConfig{
			Name:         "profile-me",
			Pattern:      "/profile/me",
			Methods:      []string{http.MethodGet},
			Upstream:     UpstreamProfile,
			UpstreamPath: "profile/me",
			Auth:         true,
		},
		RouteConfig{
			Name:         "files-upload",
			Pattern:      "/files/upload",
			Methods:      []string{http.MethodPost},
			Upstream:     UpstreamFile,
			UpstreamPath: "files/upload",
			Auth:         true,
		},
		RouteConfig{
			Name:         "search",
			Pattern:      "/search",
			Methods:      []string{http.MethodGet},
			Upstream:     UpstreamSearch,
			UpstreamPath: "search",
			Auth:         true,
		},
		RouteConfig{
			Name:         "notify-send",
			Pattern:      "/notify/send",
			Methods:      []string{http.MethodPost},
			Upstream:     UpstreamNotify,
			UpstreamPath: "notify/send",
			Auth:         true,
		},
	)
	return routes
}

// resourceRoutes returns the literal and wildcard-tail routes for a
// service prefix.
func resourceRoutes(segment, upstream string, auth bool) []RouteConfig {
	return []RouteConfig{
		{
			Name:         segment + "-root",
			Pattern:      "/" + segment,
			Methods:      slices.Clone(resourceMethods),
			Upstream:     upstream,
			UpstreamPath: segment,
			Auth:         auth,
		},
		{
			Name:         segment,
			Pattern:      "/" + segment + "/*",
			Methods:      slices.Clone(resourceMethods),
			Upstream:     upstream,
			UpstreamPath: segment + "/{path}",
			Auth:         auth,
		},
	}
}
