package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/elibrary/apigateway/internal/auth"
	"github.com/elibrary/apigateway/internal/config"
	"github.com/elibrary/apigateway/internal/gateway"
	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/proxy"
	"github.com/elibrary/apigateway/internal/ratelimit"
	"github.com/elibrary/apigateway/internal/retry"
	"github.com/elibrary/apigateway/internal/router"
)

// application holds all application components.
type application struct {
	config        *config.GatewayConfig
	gateway       *gateway.Gateway
	router        *router.Router
	pool          *proxy.ConnectionPool
	rateLimiter   *ratelimit.SlidingWindowLimiter
	metrics       *observability.Metrics
	metricsServer *http.Server
}

// initApplication initializes all application components, exiting on error.
func initApplication(cfg *config.GatewayConfig, logger observability.Logger) *application {
	app, err := buildApplication(cfg, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize application", observability.Error(err))
		return nil
	}
	return app
}

// buildApplication wires the request pipeline from cfg.
func buildApplication(cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("gateway", cfg.Env)
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	rt, err := router.New(cfg.Server.APIPrefix, cfg.Routes)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}

	// One pool serves both forwarding and introspection.
	pool := proxy.NewConnectionPool(proxy.PoolConfig{
		MaxConnsPerHost:     cfg.Proxy.MaxConns,
		MaxIdleConns:        cfg.Proxy.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Proxy.MaxIdleConns,
		IdleConnTimeout:     config.DefaultIdleConnTimeout,
		DialTimeout:         config.DefaultDialTimeout,
	})

	retryCfg := retry.Config{
		MaxRetries:   cfg.Proxy.Retries,
		BaseBackoff:  cfg.Proxy.RetryBackoff.Duration(),
		JitterFactor: cfg.Proxy.JitterFactor,
	}

	guard, err := initGuard(cfg, pool, retryCfg, metrics, logger)
	if err != nil {
		return nil, err
	}

	forwarder, err := proxy.NewForwarder(proxy.Config{
		Timeout:         cfg.Proxy.Timeout.Duration(),
		Retry:           retryCfg,
		MaxBodyBytes:    cfg.Proxy.MaxBodyBytes,
		RequestIDHeader: cfg.Server.RequestIDHeader,
	}, cfg.Upstreams,
		proxy.WithHTTPClient(pool.Client()),
		proxy.WithLogger(logger),
		proxy.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create forwarder: %w", err)
	}

	limiter := ratelimit.NewSlidingWindowLimiter(ratelimit.Config{
		Rate:   cfg.RateLimit.RPS,
		Burst:  cfg.RateLimit.Burst,
		Window: cfg.RateLimit.Window.Duration(),
	}, ratelimit.WithLogger(logger))

	gw, err := gateway.New(cfg, gateway.Dependencies{
		Router:    rt,
		Guard:     guard,
		Forwarder: forwarder,
		Limiter:   limiter,
		Metrics:   metrics,
	}, gateway.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &application{
		config:      cfg,
		gateway:     gw,
		router:      rt,
		pool:        pool,
		rateLimiter: limiter,
		metrics:     metrics,
	}, nil
}

// initGuard creates the auth guard backed by the auth upstream's
// introspection endpoint.
func initGuard(
	cfg *config.GatewayConfig,
	pool *proxy.ConnectionPool,
	retryCfg retry.Config,
	metrics *observability.Metrics,
	logger observability.Logger,
) (*auth.Guard, error) {
	base, ok := cfg.Upstreams[cfg.Auth.Upstream]
	if !ok {
		return nil, fmt.Errorf("auth upstream %q is not configured", cfg.Auth.Upstream)
	}

	introspector, err := auth.NewIntrospectionClient(&auth.ClientConfig{
		Endpoint:   proxy.JoinURL(base, cfg.Auth.IntrospectPath, ""),
		Timeout:    cfg.Proxy.Timeout.Duration(),
		Retry:      retryCfg,
		HTTPClient: pool.Client(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection client: %w", err)
	}

	return auth.NewGuard(introspector,
		auth.WithGuardMetrics(metrics),
		auth.WithGuardLogger(logger),
	), nil
}

// startSweeper starts evicting idle rate limit keys when configured.
func (a *application) startSweeper(logger observability.Logger) {
	interval := a.config.RateLimit.SweepInterval.Duration()
	if interval <= 0 {
		return
	}

	// Runs until the limiter is stopped during shutdown.
	a.rateLimiter.StartSweeper(context.Background(), interval)

	logger.Info("rate limit sweeper started",
		observability.Duration("interval", interval),
	)
}
