package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/elibrary/apigateway/internal/auth"
	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/ratelimit"
	"github.com/elibrary/apigateway/internal/util"
)

// DefaultRejectionLogInterval bounds how often rejections are logged.
const DefaultRejectionLogInterval = 5 * time.Second

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter to use.
	Limiter ratelimit.Limiter

	// Window is the limiter window, advertised in Retry-After.
	Window time.Duration

	// Metrics records rejections (optional).
	Metrics *observability.Metrics

	// Logger for logging rate limit events.
	Logger observability.Logger

	// SkipPaths is a list of paths to skip rate limiting.
	SkipPaths []string

	// LogInterval is the minimum time between two rejection log lines.
	LogInterval time.Duration
}

// RateLimit returns a middleware that admits requests through the limiter
// keyed by bearer token, or by client IP when no token is presented.
// Rejected requests get 429 and never reach routing.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	if config.Limiter == nil {
		config.Limiter = ratelimit.NoopLimiter{}
	}
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}
	if config.LogInterval <= 0 {
		config.LogInterval = DefaultRejectionLogInterval
	}

	retryAfter := ""
	if config.Window > 0 {
		retryAfter = strconv.Itoa(int(math.Ceil(config.Window.Seconds())))
	}

	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	logSometimes := &rate.Sometimes{First: 1, Interval: config.LogInterval}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		token := auth.BearerTokenOrEmpty(c.GetHeader("Authorization"))
		if config.Limiter.Admit(ratelimit.Key(token, c.ClientIP())) {
			c.Next()
			return
		}

		config.Metrics.RecordRateLimitRejection()
		logSometimes.Do(func() {
			config.Logger.Warn("rate limit exceeded",
				observability.String("request_id", GetRequestID(c)),
				observability.String("client_ip", c.ClientIP()),
				observability.Bool("token_key", token != ""),
			)
		})

		if retryAfter != "" {
			c.Header("Retry-After", retryAfter)
		}
		AbortWithError(c, util.ErrRateLimited)
	}
}
