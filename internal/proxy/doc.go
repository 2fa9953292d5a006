// Package proxy provides the forwarding engine of the API Gateway.
//
// A Forwarder turns an admitted request into a call against a named
// upstream and relays the response back while it is still arriving.
//
// # Features
//
//   - Hop-by-hop header removal per RFC 7230 in both directions
//   - Correlation, identity and X-Forwarded-* header injection
//   - Request bodies buffered up to a configured maximum (413 beyond it)
//   - Retry with exponential backoff on network-level failures only
//   - Independent timeout per attempt, covering the wait for headers
//   - Streaming response relay with a flush after every chunk
//   - One shared connection pool for all outbound traffic
//
// Upstream HTTP error statuses are relayed verbatim and never retried.
//
// Bodies are buffered so that an attempt can be replayed; uploads are
// therefore bounded by memory rather than streamed through.
//
// # Usage
//
//	pool := proxy.NewConnectionPool(proxy.DefaultPoolConfig())
//	fwd, err := proxy.NewForwarder(cfg, upstreams,
//	    proxy.WithHTTPClient(pool.Client()),
//	    proxy.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = fwd.Forward(w, r, proxy.Target{Upstream: "catalog", Suffix: "catalog/books"})
package proxy
