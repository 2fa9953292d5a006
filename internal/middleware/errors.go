package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/elibrary/apigateway/internal/util"
)

// ErrorResponse is the JSON body of every error produced by the gateway.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// AbortWithError records err on the context and renders it as a JSON
// error response. Errors that are not *util.GatewayError become 500.
// Upstream failures are marked non-cacheable.
func AbortWithError(c *gin.Context, err error) {
	gwErr := util.AsGatewayError(err)
	_ = c.Error(err)

	if gwErr.Kind == util.KindUpstream {
		c.Header("Cache-Control", "no-store")
	}
	c.AbortWithStatusJSON(gwErr.Status(), ErrorResponse{Detail: gwErr.Detail})
}
