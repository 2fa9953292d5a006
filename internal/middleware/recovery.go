package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/util"
)

// Recovery returns a middleware that turns a panic into a 500 response.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					observability.Any("error", err),
					observability.String("request_id", GetRequestID(c)),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("client_ip", c.ClientIP()),
					observability.String("stack", string(debug.Stack())),
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				AbortWithError(c, util.NewGatewayError(util.KindInternal, util.DetailInternal,
					fmt.Errorf("panic: %v", err)))
			}
		}()

		c.Next()
	}
}
