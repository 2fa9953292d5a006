package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elibrary/apigateway/internal/middleware"
	"github.com/elibrary/apigateway/internal/proxy"
	"github.com/elibrary/apigateway/internal/util"
)

// Health endpoint constants.
const (
	HealthPath  = "/health"
	ServiceName = "api-gateway"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Authenticator validates the Authorization header of a protected request.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (util.Identity, error)
}

// Forwarder relays a matched request to its upstream.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, target proxy.Target) error
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: ServiceName})
}

// dispatch routes, authenticates and forwards one request.
func (g *Gateway) dispatch(c *gin.Context) {
	match, err := g.router.Match(c.Request.Method, c.Request.URL.EscapedPath())
	if err != nil {
		middleware.AbortWithError(c, util.NewGatewayError(util.KindNotFound, util.DetailNotFound, err))
		return
	}

	route := match.Route
	middleware.SetRouteName(c, route.Name)
	ctx := util.ContextWithRoute(c.Request.Context(), route.Name)

	if route.AuthRequired {
		identity, err := g.guard.Authenticate(ctx, c.GetHeader("Authorization"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		if rc, ok := util.RequestContextFromContext(ctx); ok {
			ctx = util.ContextWithRequestContext(ctx, rc.WithIdentity(identity))
		}
	}
	c.Request = c.Request.WithContext(ctx)

	err = g.forwarder.Forward(c.Writer, c.Request, proxy.Target{
		Route:    route.Name,
		Upstream: route.Upstream,
		Suffix:   match.Suffix,
	})
	if err == nil {
		return
	}

	// Once the upstream status line is out only the log can carry the error.
	if errors.Is(err, proxy.ErrStreamAborted) || c.Writer.Written() {
		_ = c.Error(err)
		c.Abort()
		return
	}
	middleware.AbortWithError(c, err)
}
