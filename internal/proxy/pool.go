package proxy

import (
	"net"
	"net/http"
	"time"
)

// PoolConfig contains connection pool configuration.
type PoolConfig struct {
	MaxConnsPerHost     int
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnsPerHost:     200,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         5 * time.Second,
	}
}

// ConnectionPool is the outbound HTTP client shared by every upstream
// call, including token introspection. It is created once at startup.
type ConnectionPool struct {
	config    PoolConfig
	transport *http.Transport
	client    *http.Client
}

// NewConnectionPool creates a new connection pool.
func NewConnectionPool(config PoolConfig) *ConnectionPool {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		// Bodies are relayed byte-for-byte, so the transport must not
		// negotiate or undo content encoding on its own.
		DisableCompression: true,
	}

	client := &http.Client{
		Transport: transport,
		// Redirects are relayed to the caller, never followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 0, // No timeout at client level, use context
	}

	return &ConnectionPool{
		config:    config,
		transport: transport,
		client:    client,
	}
}

// Client returns the HTTP client.
func (p *ConnectionPool) Client() *http.Client {
	return p.client
}

// CloseIdleConnections closes idle connections.
func (p *ConnectionPool) CloseIdleConnections() {
	p.transport.CloseIdleConnections()
}

// PoolStats describes the configured pool bounds.
type PoolStats struct {
	MaxConnsPerHost     int
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// Stats returns the pool statistics.
func (p *ConnectionPool) Stats() PoolStats {
	return PoolStats{
		MaxConnsPerHost:     p.config.MaxConnsPerHost,
		MaxIdleConns:        p.config.MaxIdleConns,
		MaxIdleConnsPerHost: p.config.MaxIdleConnsPerHost,
	}
}
