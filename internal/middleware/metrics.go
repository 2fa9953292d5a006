package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elibrary/apigateway/internal/observability"
)

// RouteNameKey is the gin context key for the matched route name.
const RouteNameKey = "routeName"

// SetRouteName records the matched route name for logging and metrics.
func SetRouteName(c *gin.Context, name string) {
	c.Set(RouteNameKey, name)
}

// GetRouteName returns the matched route name, or "" if none matched.
func GetRouteName(c *gin.Context) string {
	return c.GetString(RouteNameKey)
}

// Metrics returns a middleware that records request count, latency and
// in-flight requests. The route label is the matched route name, the
// registered gin path for fixed endpoints, or "unmatched".
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.IncActiveRequests()
		defer m.DecActiveRequests()

		start := time.Now()
		c.Next()

		route := GetRouteName(c)
		if route == "" {
			route = c.FullPath()
		}
		if route == "" {
			route = observability.UnmatchedRoute
		}
		m.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
