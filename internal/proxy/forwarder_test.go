package proxy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/retry"
	"github.com/elibrary/apigateway/internal/util"
)

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func testConfig() Config {
	return Config{
		Timeout: 200 * time.Millisecond,
		Retry: retry.Config{
			MaxRetries:   2,
			BaseBackoff:  300 * time.Millisecond,
			JitterFactor: 0.1,
		},
		MaxBodyBytes: 1024,
	}
}

func newTestForwarder(t *testing.T, base string, sleep *recordingSleep, opts ...Option) *Forwarder {
	t.Helper()

	opts = append([]Option{WithSleep(sleep.Sleep)}, opts...)
	fwd, err := NewForwarder(testConfig(), map[string]string{"catalog": base}, opts...)
	require.NoError(t, err)
	return fwd
}

func withRequestContext(r *http.Request, identity *util.Identity) *http.Request {
	rc := &util.RequestContext{
		RequestID: "req-123",
		ClientIP:  "192.0.2.1",
		PeerIP:    "192.0.2.1",
		Scheme:    "http",
		Host:      r.Host,
		StartTime: time.Now(),
	}
	if identity != nil {
		rc = rc.WithIdentity(*identity)
	}
	return r.WithContext(util.ContextWithRequestContext(r.Context(), rc))
}

func closedAddr(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestNewForwarder_InvalidUpstream(t *testing.T) {
	t.Parallel()

	_, err := NewForwarder(Config{}, map[string]string{"catalog": "not a url"})
	var proxyErr *ProxyError
	require.ErrorAs(t, err, &proxyErr)
	assert.Equal(t, "catalog", proxyErr.Upstream)
}

func TestForward_PreservesMethodQueryAndBody(t *testing.T) {
	t.Parallel()

	payload := []byte{0x00, 0x01, 'h', 'i', 0xff, '\n'}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/catalog/books", r.URL.Path)
		assert.Equal(t, "limit=5&q=a%20b", r.URL.RawQuery)
		assert.Equal(t, int64(len(payload)), r.ContentLength)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, payload, body)

		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	fwd := newTestForwarder(t, upstream.URL, &recordingSleep{})

	req := httptest.NewRequest(http.MethodPatch, "/api/catalog/books?limit=5&q=a%20b", bytes.NewReader(payload))
	req = withRequestContext(req, nil)
	rec := httptest.NewRecorder()

	err := fwd.Forward(rec, req, Target{Route: "catalog", Upstream: "catalog", Suffix: "catalog/books"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestForward_HeaderTransformation(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("Proxy-Authenticate", "Basic")
		w.Header().Set("Upgrade", "h2c")
		w.Header().Set("X-Request-ID", "upstream-id")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	fwd := newTestForwarder(t, upstream.URL, &recordingSleep{})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/books", nil)
	req.Host = "gateway.example"
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Connection", "keep-alive, X-Private")
	req.Header.Set("X-Private", "secret")
	req.Header.Set("Keep-Alive", "timeout=5")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	req.Header.Set("Te", "trailers")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-User-ID", "spoofed")
	req.Header.Set("Accept", "application/json")
	req = withRequestContext(req, &util.Identity{UserID: "u-7", Roles: []string{"reader", "admin"}})
	original := req.Header.Clone()

	rec := httptest.NewRecorder()
	err := fwd.Forward(rec, req, Target{Upstream: "catalog", Suffix: "catalog/books"})
	require.NoError(t, err)
	got := <-seen

	for _, name := range []string{"Connection", "Keep-Alive", "Proxy-Authorization", "Te", "Upgrade", "X-Private"} {
		assert.Empty(t, got.Values(name), name)
	}
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "req-123", got.Get("X-Request-ID"))
	assert.Equal(t, "u-7", got.Get("X-User-ID"))
	assert.Equal(t, "reader,admin", got.Get("X-User-Roles"))
	assert.Equal(t, "203.0.113.9, 192.0.2.1", got.Get("X-Forwarded-For"))
	assert.Equal(t, "http", got.Get("X-Forwarded-Proto"))
	assert.Equal(t, "gateway.example", got.Get("X-Forwarded-Host"))
	assert.Empty(t, got.Get("User-Agent"))

	for _, name := range []string{"Keep-Alive", "Proxy-Authenticate", "Upgrade", "Connection", "Transfer-Encoding"} {
		assert.Empty(t, rec.Header().Values(name), name)
	}
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.Equal(t, []string{"req-123"}, rec.Header().Values("X-Request-ID"))

	assert.Equal(t, original, req.Header, "inbound headers must not be modified")
}

func TestForward_ForwardedHeadersPreservedAndNoIdentity(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
	}))
	defer upstream.Close()

	fwd := newTestForwarder(t, upstream.URL, &recordingSleep{})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "library.example")
	req.Header.Set("X-User-Roles", "admin")
	req.Header.Set("User-Agent", "reader-app/1.0")
	req = withRequestContext(req, nil)

	require.NoError(t, fwd.Forward(httptest.NewRecorder(), req, Target{Upstream: "catalog", Suffix: "catalog"}))
	got := <-seen

	assert.Equal(t, "192.0.2.1", got.Get("X-Forwarded-For"))
	assert.Equal(t, "https", got.Get("X-Forwarded-Proto"))
	assert.Equal(t, "library.example", got.Get("X-Forwarded-Host"))
	assert.Empty(t, got.Values("X-User-ID"))
	assert.Empty(t, got.Values("X-User-Roles"))
	assert.Equal(t, "reader-app/1.0", got.Get("User-Agent"))
}

func TestForward_ErrorStatusPassedThroughWithoutRetry(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusServiceUnavailable} {
		var calls atomic.Int32
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"from upstream"}`))
		}))

		sleep := &recordingSleep{}
		fwd := newTestForwarder(t, upstream.URL, sleep)

		req := withRequestContext(httptest.NewRequest(http.MethodPost, "/api/catalog", strings.NewReader("x")), nil)
		rec := httptest.NewRecorder()

		require.NoError(t, fwd.Forward(rec, req, Target{Upstream: "catalog", Suffix: "catalog"}))
		assert.Equal(t, status, rec.Code)
		assert.Equal(t, `{"detail":"from upstream"}`, rec.Body.String())
		assert.Equal(t, int32(1), calls.Load())
		assert.Empty(t, sleep.Delays())

		upstream.Close()
	}
}

func TestForward_ConnectionRefusedExhaustsRetries(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("gateway", "")
	sleep := &recordingSleep{}
	fwd := newTestForwarder(t, "http://"+closedAddr(t), sleep, WithMetrics(metrics))

	req := withRequestContext(httptest.NewRequest(http.MethodPost, "/api/catalog", strings.NewReader("body")), nil)
	rec := httptest.NewRecorder()

	err := fwd.Forward(rec, req, Target{Upstream: "catalog", Suffix: "catalog"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrUpstream))
	assert.Equal(t, util.DetailUpstream, util.AsGatewayError(err).Detail)
	assert.Zero(t, rec.Body.Len())

	delays := sleep.Delays()
	require.Len(t, delays, 2)
	assert.GreaterOrEqual(t, delays[0], 300*time.Millisecond)
	assert.Less(t, delays[0], 330*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 600*time.Millisecond)
	assert.Less(t, delays[1], 660*time.Millisecond)

	expected := `
# HELP gateway_upstream_retries_total Total number of retried upstream attempts
# TYPE gateway_upstream_retries_total counter
gateway_upstream_retries_total{upstream="catalog"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"gateway_upstream_retries_total"))
}

func TestForward_AttemptTimeoutIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte("second"))
	}))
	defer upstream.Close()

	sleep := &recordingSleep{}
	fwd := newTestForwarder(t, upstream.URL, sleep)

	req := withRequestContext(httptest.NewRequest(http.MethodGet, "/api/catalog", nil), nil)
	rec := httptest.NewRecorder()

	require.NoError(t, fwd.Forward(rec, req, Target{Upstream: "catalog", Suffix: "catalog"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "second", rec.Body.String())
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, sleep.Delays(), 1)
}

func TestForward_PayloadTooLarge(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	fwd := newTestForwarder(t, upstream.URL, &recordingSleep{})

	req := withRequestContext(httptest.NewRequest(http.MethodPost, "/api/catalog",
		bytes.NewReader(make([]byte, 1025))), nil)
	err := fwd.Forward(httptest.NewRecorder(), req, Target{Upstream: "catalog", Suffix: "catalog"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrPayloadTooLarge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, util.AsGatewayError(err).Status())
	assert.Zero(t, calls.Load())
}

func TestForward_UnknownUpstream(t *testing.T) {
	t.Parallel()

	fwd := newTestForwarder(t, "http://127.0.0.1:1", &recordingSleep{})

	req := withRequestContext(httptest.NewRequest(http.MethodGet, "/api/x", nil), nil)
	err := fwd.Forward(httptest.NewRecorder(), req, Target{Upstream: "nowhere", Suffix: "x"})
	assert.ErrorIs(t, err, ErrUnknownUpstream)
	assert.True(t, errors.Is(err, util.ErrUpstream))
}

func TestForward_StreamsBeforeUpstreamFinishes(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("first\n"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		_, _ = w.Write([]byte("second\n"))
	}))
	defer upstream.Close()

	fwd := newTestForwarder(t, upstream.URL, &recordingSleep{})
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = fwd.Forward(w, r, Target{Upstream: "catalog", Suffix: "stream"})
	}))
	defer front.Close()

	resp, err := http.Get(front.URL + "/stream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "first\n", line)

	close(release)
	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(rest))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

func TestForward_WithoutRequestContext(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
	}))
	defer upstream.Close()

	fwd := newTestForwarder(t, upstream.URL, &recordingSleep{})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	req.Header.Set("X-Request-ID", "inbound-id")

	require.NoError(t, fwd.Forward(httptest.NewRecorder(), req, Target{Upstream: "catalog", Suffix: "catalog"}))
	got := <-seen
	assert.Equal(t, "inbound-id", got.Get("X-Request-ID"))
	assert.Equal(t, "198.51.100.4", got.Get("X-Forwarded-For"))
}
