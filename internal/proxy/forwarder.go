package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elibrary/apigateway/internal/observability"
	"github.com/elibrary/apigateway/internal/retry"
	"github.com/elibrary/apigateway/internal/util"
)

// Headers injected into upstream requests.
const (
	HeaderRequestID      = "X-Request-ID"
	HeaderUserID         = "X-User-ID"
	HeaderUserRoles      = "X-User-Roles"
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderForwardedProto = "X-Forwarded-Proto"
	HeaderForwardedHost  = "X-Forwarded-Host"
)

const defaultCopyBufferSize = 32 * 1024

// Defaults for Config.
const (
	DefaultTimeout      = 8 * time.Second
	DefaultMaxBodyBytes = 50 * 1024 * 1024
)

// Config configures the forwarder.
type Config struct {
	// Timeout bounds each attempt from dialing until response headers.
	Timeout time.Duration

	// Retry is applied to network-level failures only.
	Retry retry.Config

	// MaxBodyBytes bounds the buffered request body.
	MaxBodyBytes int64

	// RequestIDHeader names the correlation header. Defaults to X-Request-ID.
	RequestIDHeader string
}

// Target identifies where a matched request goes.
type Target struct {
	// Route is the matched route name, used for logging.
	Route string
	// Upstream is the upstream name.
	Upstream string
	// Suffix is the escaped path below the upstream base URL.
	Suffix string
}

// Forwarder relays requests to upstream services.
type Forwarder struct {
	cfg       Config
	upstreams map[string]string
	client    *http.Client
	logger    observability.Logger
	metrics   *observability.Metrics
	sleep     retry.SleepFunc
}

// Option is a functional option for configuring the forwarder.
type Option func(*Forwarder)

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithHTTPClient sets the outbound client. It should come from a shared
// ConnectionPool.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(f *Forwarder) {
		f.sleep = sleep
	}
}

// NewForwarder creates a forwarder for the named upstream base URLs.
func NewForwarder(cfg Config, upstreams map[string]string, opts ...Option) (*Forwarder, error) {
	for name, base := range upstreams {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &ProxyError{Op: "parse_upstream", Upstream: name, Target: base,
				Cause: fmt.Errorf("invalid upstream URL: %w", err)}
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RequestIDHeader == "" {
		cfg.RequestIDHeader = HeaderRequestID
	}

	f := &Forwarder{
		cfg:       cfg,
		upstreams: make(map[string]string, len(upstreams)),
		logger:    observability.NopLogger(),
	}
	for name, base := range upstreams {
		f.upstreams[name] = base
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = NewConnectionPool(DefaultPoolConfig()).Client()
	}
	return f, nil
}

// Forward relays r to target and streams the upstream response into w.
//
// Errors returned before anything is written are *util.GatewayError
// values (PayloadTooLarge or UpstreamError) for the caller to render.
// An error wrapping ErrStreamAborted means the status line was already
// sent and the response is truncated.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, target Target) error {
	ctx := r.Context()
	logger := f.logger.WithContext(ctx).With(
		observability.String("route", target.Route),
		observability.String("upstream", target.Upstream),
	)

	base, ok := f.upstreams[target.Upstream]
	if !ok {
		return util.NewUpstreamError(&ProxyError{Op: "select_upstream", Upstream: target.Upstream,
			Cause: ErrUnknownUpstream})
	}

	body, err := f.readBody(w, r)
	if err != nil {
		return err
	}

	rc := requestContextOf(r, f.cfg.RequestIDHeader)
	headers := f.outboundHeaders(r, rc)
	targetURL := JoinURL(base, target.Suffix, r.URL.RawQuery)

	start := time.Now()
	resp, release, err := f.roundTrip(ctx, r.Method, targetURL, headers, body, target.Upstream, logger)
	if err != nil {
		f.metrics.RecordUpstream(target.Upstream, observability.OutcomeError, time.Since(start))
		logger.Error("upstream request failed",
			observability.String("method", r.Method),
			observability.String("target", targetURL),
			observability.Error(err),
		)
		return util.NewUpstreamError(&ProxyError{Op: "round_trip", Upstream: target.Upstream,
			Target: targetURL, Cause: err})
	}
	defer release()
	defer func() { _ = resp.Body.Close() }()
	f.metrics.RecordUpstream(target.Upstream, observability.OutcomeSuccess, time.Since(start))

	// Upstream values replace any the gateway already set, such as CORS.
	dst := w.Header()
	replaced := make(map[string]struct{}, len(resp.Header))
	for _, h := range FromHTTPHeader(resp.Header).WithoutHopByHop().Without(f.cfg.RequestIDHeader) {
		if _, ok := replaced[h.Name]; !ok {
			dst.Del(h.Name)
			replaced[h.Name] = struct{}{}
		}
		dst.Add(h.Name, h.Value)
	}
	dst.Set(f.cfg.RequestIDHeader, rc.RequestID)
	w.WriteHeader(resp.StatusCode)

	// Commit the status line now; an empty body must not leave it pending.
	flusher := http.NewResponseController(w)
	if err := flusher.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn("response stream aborted",
			observability.String("target", targetURL),
			observability.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrStreamAborted, err)
	}

	if err := copyStreaming(w, flusher, resp.Body); err != nil {
		logger.Warn("response stream aborted",
			observability.String("target", targetURL),
			observability.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrStreamAborted, err)
	}
	return nil
}

// readBody buffers the request body up to MaxBodyBytes.
func (f *Forwarder) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, util.NewGatewayError(util.KindPayloadTooLarge, util.DetailPayloadTooLarge, err)
		}
		return nil, util.NewUpstreamError(&ProxyError{Op: "read_body", Cause: err})
	}
	return body, nil
}

// outboundHeaders derives the upstream request headers from the inbound
// ones without touching r.Header.
func (f *Forwarder) outboundHeaders(r *http.Request, rc *util.RequestContext) Headers {
	in := FromHTTPHeader(r.Header)

	out := in.WithoutHopByHop().
		Without("Host", "Content-Length", HeaderUserID, HeaderUserRoles).
		With(f.cfg.RequestIDHeader, rc.RequestID)

	if rc.Identity != nil {
		if rc.Identity.UserID != "" {
			out = out.With(HeaderUserID, rc.Identity.UserID)
		}
		if len(rc.Identity.Roles) > 0 {
			out = out.With(HeaderUserRoles, rc.Identity.RolesHeader())
		}
	}

	forwardedFor := rc.PeerIP
	if chain := strings.Join(in.Values(HeaderForwardedFor), ", "); chain != "" {
		forwardedFor = chain + ", " + rc.PeerIP
	}
	proto, ok := in.Get(HeaderForwardedProto)
	if !ok || proto == "" {
		proto = rc.Scheme
	}
	host, ok := in.Get(HeaderForwardedHost)
	if !ok || host == "" {
		host = r.Host
	}

	out = out.With(HeaderForwardedFor, forwardedFor).
		With(HeaderForwardedProto, proto).
		With(HeaderForwardedHost, host)

	if _, ok := out.Get("User-Agent"); !ok {
		// An empty value stops the client from adding its own.
		out = out.With("User-Agent", "")
	}
	return out
}

// roundTrip sends the request with retries. On success the returned
// release func must be called once the body has been consumed.
func (f *Forwarder) roundTrip(
	ctx context.Context,
	method, targetURL string,
	headers Headers,
	body []byte,
	upstream string,
	logger observability.Logger,
) (*http.Response, context.CancelFunc, error) {
	var (
		resp    *http.Response
		release context.CancelFunc
	)

	err := retry.Do(ctx, f.cfg.Retry, func(ctx context.Context, _ int) error {
		res, cancel, err := f.attempt(ctx, method, targetURL, headers, body)
		if err != nil {
			return err
		}
		resp, release = res, cancel
		return nil
	}, &retry.Options{
		ShouldRetry: retry.IsNetworkError,
		Sleep:       f.sleep,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			f.metrics.RecordUpstreamRetry(upstream)
			logger.Warn("retrying upstream request",
				observability.String("method", method),
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, release, nil
}

// attempt performs one upstream call. The per-attempt timer covers
// connecting, sending and waiting for response headers; the body relay
// afterwards is bounded by the inbound request's lifetime only.
func (f *Forwarder) attempt(
	ctx context.Context,
	method, targetURL string,
	headers Headers,
	body []byte,
) (*http.Response, context.CancelFunc, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(f.cfg.Timeout, cancel)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, targetURL, reader)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, nil, err
	}
	req.Header = headers.HTTPHeader()

	resp, err := f.client.Do(req)
	fired := !timer.Stop()
	if fired && ctx.Err() == nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		cancel()
		return nil, nil, &attemptTimeoutError{cause: err}
	}
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

// copyStreaming relays src to w, flushing after every chunk so the
// caller sees bytes as soon as the upstream produces them.
func copyStreaming(w io.Writer, rc *http.ResponseController, src io.Reader) error {
	buf := make([]byte, defaultCopyBufferSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// requestContextOf returns the request's RequestContext, deriving a
// minimal one when the forwarder runs outside the gateway pipeline.
func requestContextOf(r *http.Request, requestIDHeader string) *util.RequestContext {
	if rc, ok := util.RequestContextFromContext(r.Context()); ok {
		return rc
	}

	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return &util.RequestContext{
		RequestID: r.Header.Get(requestIDHeader),
		ClientIP:  peer,
		PeerIP:    peer,
		Scheme:    scheme,
		Host:      r.Host,
		StartTime: time.Now(),
	}
}
