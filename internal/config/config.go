package config

import (
	"time"
)

// Upstream names used by the default route table.
const (
	UpstreamAuth       = "auth"
	UpstreamCatalog    = "catalog"
	UpstreamReview     = "review"
	UpstreamFavourites = "favourites"
	UpstreamFile       = "file"
	UpstreamSearch     = "search"
	UpstreamProfile    = "profile"
	UpstreamNotify     = "notify"
)

// Default values.
const (
	DefaultListenAddr       = ":8000"
	DefaultAPIPrefix        = "/api"
	DefaultRequestIDHeader  = "X-Request-ID"
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultRateLimitRPS     = 5.0
	DefaultRateLimitBurst   = 10
	DefaultRateLimitWindow  = time.Second
	DefaultProxyTimeout     = 8 * time.Second
	DefaultProxyRetries     = 2
	DefaultProxyBackoff     = 300 * time.Millisecond
	DefaultMaxBodyBytes     = 50 * 1024 * 1024
	DefaultMaxConns         = 200
	DefaultMaxIdleConns     = 100
	DefaultIntrospectPath   = "/auth/introspect"
	DefaultMetricsAddr      = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultEnvironment      = "dev"
	DefaultIdleConnTimeout  = 90 * time.Second
	DefaultDialTimeout      = 5 * time.Second
	DefaultJitterFactor     = 0.1
	DefaultCORSAllowOrigins = "*"
)

// GatewayConfig is the complete gateway configuration.
type GatewayConfig struct {
	Env       string            `yaml:"env"`
	Server    ServerConfig      `yaml:"server"`
	Logging   LoggingConfig     `yaml:"logging"`
	RateLimit RateLimitConfig   `yaml:"rateLimit"`
	Proxy     ProxyConfig       `yaml:"proxy"`
	Auth      AuthConfig        `yaml:"auth"`
	CORS      CORSConfig        `yaml:"cors"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Upstreams map[string]string `yaml:"upstreams"`
	Routes    []RouteConfig     `yaml:"routes"`
}

// ServerConfig configures the inbound listener.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listenAddr"`
	APIPrefix       string   `yaml:"apiPrefix"`
	RequestIDHeader string   `yaml:"requestIDHeader"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For is honoured
	// when resolving the client IP.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RateLimitConfig configures the sliding-window limiter.
type RateLimitConfig struct {
	// RPS is documentary; Burst per Window is what is enforced.
	RPS           float64  `yaml:"rps"`
	Burst         int      `yaml:"burst"`
	Window        Duration `yaml:"window"`
	SweepInterval Duration `yaml:"sweepInterval"`
}

// ProxyConfig configures upstream forwarding.
type ProxyConfig struct {
	Timeout      Duration `yaml:"timeout"`
	Retries      int      `yaml:"retries"`
	RetryBackoff Duration `yaml:"retryBackoff"`
	JitterFactor float64  `yaml:"jitterFactor"`
	MaxBodyBytes int64    `yaml:"maxBodyBytes"`
	MaxConns     int      `yaml:"maxConns"`
	MaxIdleConns int      `yaml:"maxIdleConns"`
}

// AuthConfig configures token introspection.
type AuthConfig struct {
	Upstream       string `yaml:"upstream"`
	IntrospectPath string `yaml:"introspectPath"`
}

// CORSConfig configures cross-origin handling.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// RouteConfig declares one route.
type RouteConfig struct {
	Name string `yaml:"name"`
	// Pattern is a literal path ("/search") or a wildcard tail ("/reviews/*"),
	// relative to the API prefix.
	Pattern  string   `yaml:"pattern"`
	Methods  []string `yaml:"methods"`
	Upstream string   `yaml:"upstream"`
	// UpstreamPath is the path suffix template; "{path}" expands to the
	// wildcard tail. Empty means the matched path.
	UpstreamPath string `yaml:"upstreamPath"`
	Auth         bool   `yaml:"auth"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Env: DefaultEnvironment,
		Server: ServerConfig{
			ListenAddr:      DefaultListenAddr,
			APIPrefix:       DefaultAPIPrefix,
			RequestIDHeader: DefaultRequestIDHeader,
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		RateLimit: RateLimitConfig{
			RPS:    DefaultRateLimitRPS,
			Burst:  DefaultRateLimitBurst,
			Window: Duration(DefaultRateLimitWindow),
		},
		Proxy: ProxyConfig{
			Timeout:      Duration(DefaultProxyTimeout),
			Retries:      DefaultProxyRetries,
			RetryBackoff: Duration(DefaultProxyBackoff),
			JitterFactor: DefaultJitterFactor,
			MaxBodyBytes: DefaultMaxBodyBytes,
			MaxConns:     DefaultMaxConns,
			MaxIdleConns: DefaultMaxIdleConns,
		},
		Auth: AuthConfig{
			Upstream:       UpstreamAuth,
			IntrospectPath: DefaultIntrospectPath,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{DefaultCORSAllowOrigins},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
			Path:    DefaultMetricsPath,
		},
		Upstreams: map[string]string{
			UpstreamAuth:       "http://localhost:8001",
			UpstreamCatalog:    "http://localhost:8002",
			UpstreamFile:       "http://localhost:8003",
			UpstreamSearch:     "http://localhost:8004",
			UpstreamProfile:    "http://localhost:8005",
			UpstreamNotify:     "http://localhost:8006",
			UpstreamReview:     "http://localhost:8007",
			UpstreamFavourites: "http://localhost:8008",
		},
		Routes: DefaultRoutes(),
	}
}
