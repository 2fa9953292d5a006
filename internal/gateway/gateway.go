package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elibrary/apigateway/internal/config"
	"github.com/elibrary/apigateway/internal/middleware"
	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/ratelimit"
	"github.com/elibrary/apigateway/internal/router"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Dependencies are the request-path components the gateway dispatches to.
type Dependencies struct {
	Router    *router.Router
	Guard     Authenticator
	Forwarder Forwarder
	// Limiter admits requests before routing. Nil admits everything.
	Limiter ratelimit.Limiter
	// Metrics is optional.
	Metrics *observability.Metrics
}

// Gateway is the inbound HTTP server.
type Gateway struct {
	config    *config.GatewayConfig
	logger    observability.Logger
	engine    *gin.Engine
	router    *router.Router
	guard     Authenticator
	forwarder Forwarder

	server    *http.Server
	addr      net.Addr
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex

	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithShutdownTimeout sets the shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// New creates a Gateway and builds its gin engine.
func New(cfg *config.GatewayConfig, deps Dependencies, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if deps.Router == nil || deps.Guard == nil || deps.Forwarder == nil {
		return nil, fmt.Errorf("%w: router, guard and forwarder are required", ErrMissingDependency)
	}

	g := &Gateway{
		config:          cfg,
		logger:          observability.NopLogger(),
		router:          deps.Router,
		guard:           deps.Guard,
		forwarder:       deps.Forwarder,
		shutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.shutdownTimeout <= 0 {
		g.shutdownTimeout = config.DefaultShutdownTimeout
	}

	engine, err := g.buildEngine(deps)
	if err != nil {
		return nil, err
	}
	g.engine = engine

	g.state.Store(int32(StateStopped))
	return g, nil
}

// buildEngine wires the middleware chain, /health and the catch-all dispatcher.
func (g *Gateway) buildEngine(deps Dependencies) (*gin.Engine, error) {
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.UseRawPath = true

	if err := engine.SetTrustedProxies(g.config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(g.config.CORS.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = g.config.CORS.AllowOrigins
	}

	engine.Use(
		middleware.Recovery(g.logger),
		middleware.RequestIDWithHeader(g.config.Server.RequestIDHeader),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger:    g.logger,
			SkipPaths: []string{HealthPath},
		}),
		middleware.Metrics(deps.Metrics),
		middleware.CORSWithConfig(corsConfig),
		middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:   deps.Limiter,
			Window:    g.config.RateLimit.Window.Duration(),
			Metrics:   deps.Metrics,
			Logger:    g.logger,
			SkipPaths: []string{HealthPath},
		}),
	)

	engine.GET(HealthPath, healthHandler)
	engine.NoRoute(g.dispatch)

	return engine, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Engine returns the gin engine.
func (g *Gateway) Engine() *gin.Engine {
	return g.engine
}

// Start binds the listen address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	addr := g.config.Server.ListenAddr

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// No read or write timeout: request and response bodies are streamed.
	server := &http.Server{
		Handler:           g.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g.mu.Lock()
	g.server = server
	g.addr = ln.Addr()
	g.startTime = time.Now()
	g.mu.Unlock()

	go g.serve(server, ln)

	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("address", ln.Addr().String()),
		observability.String("api_prefix", g.config.Server.APIPrefix),
		observability.Int("routes", len(g.router.Routes())),
		observability.String("env", g.config.Env),
	)
	return nil
}

func (g *Gateway) serve(server *http.Server, ln net.Listener) {
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		g.logger.Error("gateway server error", observability.Error(err))
	}
}

// Stop drains in-flight requests and stops the server.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	g.mu.RLock()
	server := g.server
	g.mu.RUnlock()

	var stopErr error
	if err := server.Shutdown(ctx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			stopErr = fmt.Errorf("failed to close server: %w", closeErr)
		} else {
			stopErr = fmt.Errorf("failed to shutdown gracefully: %w", err)
		}
	}

	g.state.Store(int32(StateStopped))
	g.logger.Info("gateway stopped")
	return stopErr
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Addr returns the bound address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.addr
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	if !g.IsRunning() {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return time.Since(g.startTime)
}
