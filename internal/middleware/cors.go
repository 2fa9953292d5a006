package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowOrigins is a list of origins that may access the resource.
	// Use "*" to allow all origins.
	AllowOrigins []string

	// AllowMethods is a list of methods allowed when accessing the resource.
	AllowMethods []string

	// AllowHeaders is a list of request headers allowed on the actual
	// request. "*" reflects whatever the preflight asks for.
	AllowHeaders []string

	// ExposeHeaders is a list of headers that browsers are allowed to access.
	ExposeHeaders []string

	// AllowCredentials indicates whether the request can include user credentials.
	AllowCredentials bool

	// MaxAge indicates how long the results of a preflight request can be cached.
	MaxAge int
}

// DefaultCORSConfig returns a CORS config with default values.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}
}

// CORS returns a middleware that handles CORS requests.
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// corsContext holds pre-computed values for CORS middleware.
type corsContext struct {
	config           CORSConfig
	allowAllOrigins  bool
	reflectHeaders   bool
	allowMethodsStr  string
	allowHeadersStr  string
	exposeHeadersStr string
	maxAgeStr        string
}

// newCORSContext creates and initializes the CORS context with pre-computed values.
func newCORSContext(config CORSConfig) *corsContext {
	defaults := DefaultCORSConfig()
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = defaults.AllowOrigins
	}
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = defaults.AllowMethods
	}
	if len(config.AllowHeaders) == 0 {
		config.AllowHeaders = defaults.AllowHeaders
	}

	return &corsContext{
		config:           config,
		allowAllOrigins:  slices.Contains(config.AllowOrigins, "*"),
		reflectHeaders:   slices.Contains(config.AllowHeaders, "*"),
		allowMethodsStr:  strings.Join(config.AllowMethods, ", "),
		allowHeadersStr:  strings.Join(config.AllowHeaders, ", "),
		exposeHeadersStr: strings.Join(config.ExposeHeaders, ", "),
		maxAgeStr:        strconv.Itoa(config.MaxAge),
	}
}

// setCommonCORSHeaders sets the common CORS headers for both preflight and actual requests.
func (ctx *corsContext) setCommonCORSHeaders(c *gin.Context, origin string) {
	if ctx.allowAllOrigins && !ctx.config.AllowCredentials {
		c.Header("Access-Control-Allow-Origin", "*")
	} else {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Add("Vary", "Origin")
	}

	if ctx.config.AllowCredentials {
		c.Header("Access-Control-Allow-Credentials", "true")
	}

	if ctx.exposeHeadersStr != "" {
		c.Header("Access-Control-Expose-Headers", ctx.exposeHeadersStr)
	}
}

// setPreflightHeaders sets headers specific to preflight (OPTIONS) requests.
func (ctx *corsContext) setPreflightHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Methods", ctx.allowMethodsStr)

	allowHeaders := ctx.allowHeadersStr
	if ctx.reflectHeaders {
		allowHeaders = c.GetHeader("Access-Control-Request-Headers")
	}
	if allowHeaders != "" {
		c.Header("Access-Control-Allow-Headers", allowHeaders)
	}
	c.Header("Access-Control-Max-Age", ctx.maxAgeStr)
}

// CORSWithConfig returns a CORS middleware with custom configuration.
// Preflight requests from allowed origins are answered with 204 and do
// not continue down the chain.
func CORSWithConfig(config CORSConfig) gin.HandlerFunc {
	ctx := newCORSContext(config)

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Skip if no origin header
		if origin == "" {
			c.Next()
			return
		}

		if !ctx.allowAllOrigins && !slices.Contains(ctx.config.AllowOrigins, origin) {
			c.Next()
			return
		}

		ctx.setCommonCORSHeaders(c, origin)

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			ctx.setPreflightHeaders(c)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
