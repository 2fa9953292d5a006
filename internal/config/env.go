package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/elibrary/apigateway/internal/util"
)

// Environment variable names.
const (
	EnvEnvironment       = "ENV"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
	EnvListenAddr        = "LISTEN_ADDR"
	EnvAPIPrefix         = "API_PREFIX"
	EnvRequestIDHeader   = "REQUEST_ID_HEADER"
	EnvShutdownTimeout   = "SHUTDOWN_TIMEOUT_S"
	EnvTrustedProxies    = "TRUSTED_PROXIES"
	EnvRateLimitRPS      = "RATE_LIMIT_RPS"
	EnvRateLimitBurst    = "RATE_LIMIT_BURST"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW_S"
	EnvRateLimitSweep    = "RATE_LIMIT_SWEEP_INTERVAL_S"
	EnvProxyTimeout      = "PROXY_TIMEOUT_S"
	EnvProxyRetries      = "PROXY_RETRIES"
	EnvProxyRetryBackoff = "PROXY_RETRY_BACKOFF_S"
	EnvProxyMaxBody      = "PROXY_MAX_BODY_BYTES"
	EnvProxyMaxConns     = "PROXY_MAX_CONNS"
	EnvProxyMaxIdleConns = "PROXY_MAX_IDLE_CONNS"
	EnvCORSAllowOrigins  = "CORS_ALLOW_ORIGINS"
	EnvMetricsEnabled    = "METRICS_ENABLED"
	EnvMetricsAddr       = "METRICS_ADDR"
)

// upstreamEnv maps upstream names to their base URL variables.
var upstreamEnv = map[string]string{
	UpstreamAuth:       "AUTH_SERVICE_URL",
	UpstreamCatalog:    "CATALOG_SERVICE_URL",
	UpstreamReview:     "REVIEW_SERVICE_URL",
	UpstreamFavourites: "FAVOURITES_SERVICE_URL",
	UpstreamFile:       "FILE_SERVICE_URL",
	UpstreamSearch:     "SEARCH_SERVICE_URL",
	UpstreamProfile:    "PROFILE_SERVICE_URL",
	UpstreamNotify:     "NOTIFY_SERVICE_URL",
}

// UpstreamEnvVar returns the environment variable for an upstream's base URL.
func UpstreamEnvVar(upstream string) (string, bool) {
	name, ok := upstreamEnv[upstream]
	return name, ok
}

// envReader accumulates parse errors while reading variables.
type envReader struct {
	lookup LookupEnvFunc
	errs   []error
}

func (r *envReader) value(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.value(key); ok {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	if v, ok := r.value(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, util.NewConfigErrorWithCause(key, "must be an integer", err))
			return
		}
		*dst = n
	}
}

func (r *envReader) int64(key string, dst *int64) {
	if v, ok := r.value(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, util.NewConfigErrorWithCause(key, "must be an integer", err))
			return
		}
		*dst = n
	}
}

func (r *envReader) float(key string, dst *float64) {
	if v, ok := r.value(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, util.NewConfigErrorWithCause(key, "must be a number", err))
			return
		}
		*dst = f
	}
}

// seconds reads a (possibly fractional) number of seconds.
func (r *envReader) seconds(key string, dst *Duration) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, util.NewConfigErrorWithCause(key, "must be a number of seconds", err))
		return
	}
	*dst = Duration(time.Duration(f * float64(time.Second)))
}

func (r *envReader) boolean(key string, dst *bool) {
	if v, ok := r.value(key); ok {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			*dst = true
		case "false", "0", "no", "off":
			*dst = false
		default:
			r.errs = append(r.errs, util.NewConfigError(key, "must be a boolean"))
		}
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v, ok := r.value(key); ok {
		*dst = SplitList(v)
	}
}

// SplitList splits a comma-separated list, trimming blanks and dropping
// empty items.
func SplitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyEnv overlays environment variables on cfg.
func (l *Loader) applyEnv(cfg *GatewayConfig) error {
	r := &envReader{lookup: l.lookupEnv}

	r.str(EnvEnvironment, &cfg.Env)
	r.str(EnvLogLevel, &cfg.Logging.Level)
	r.str(EnvLogFormat, &cfg.Logging.Format)

	r.str(EnvListenAddr, &cfg.Server.ListenAddr)
	r.str(EnvAPIPrefix, &cfg.Server.APIPrefix)
	r.str(EnvRequestIDHeader, &cfg.Server.RequestIDHeader)
	r.seconds(EnvShutdownTimeout, &cfg.Server.ShutdownTimeout)
	r.list(EnvTrustedProxies, &cfg.Server.TrustedProxies)

	r.float(EnvRateLimitRPS, &cfg.RateLimit.RPS)
	r.integer(EnvRateLimitBurst, &cfg.RateLimit.Burst)
	r.seconds(EnvRateLimitWindow, &cfg.RateLimit.Window)
	r.seconds(EnvRateLimitSweep, &cfg.RateLimit.SweepInterval)

	r.seconds(EnvProxyTimeout, &cfg.Proxy.Timeout)
	r.integer(EnvProxyRetries, &cfg.Proxy.Retries)
	r.seconds(EnvProxyRetryBackoff, &cfg.Proxy.RetryBackoff)
	r.int64(EnvProxyMaxBody, &cfg.Proxy.MaxBodyBytes)
	r.integer(EnvProxyMaxConns, &cfg.Proxy.MaxConns)
	r.integer(EnvProxyMaxIdleConns, &cfg.Proxy.MaxIdleConns)

	r.list(EnvCORSAllowOrigins, &cfg.CORS.AllowOrigins)

	r.boolean(EnvMetricsEnabled, &cfg.Metrics.Enabled)
	r.str(EnvMetricsAddr, &cfg.Metrics.Addr)

	if cfg.Upstreams == nil {
		cfg.Upstreams = make(map[string]string, len(upstreamEnv))
	}
	for name, key := range upstreamEnv {
		if v, ok := r.value(key); ok {
			cfg.Upstreams[name] = v
		}
	}

	if len(r.errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(r.errs...))
	}
	return nil
}
