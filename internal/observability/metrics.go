package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute is the route label for requests that matched no route,
// keeping label cardinality bounded.
const UnmatchedRoute = "unmatched"

// Upstream call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Introspection results.
const (
	IntrospectionActive   = "active"
	IntrospectionInactive = "inactive"
	IntrospectionError    = "error"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	activeRequests       prometheus.Gauge
	rateLimitRejections  prometheus.Counter
	upstreamRequests     *prometheus.CounterVec
	upstreamRetries      *prometheus.CounterVec
	upstreamDuration     *prometheus.HistogramVec
	introspectionResults *prometheus.CounterVec
	buildInfo            *prometheus.GaugeVec
	startTime            prometheus.Gauge
	registry             *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with its own registry.
// env is attached to every series as the "env" constant label when
// non-empty.
func NewMetrics(namespace, env string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	var constLabels prometheus.Labels
	if env != "" {
		constLabels = prometheus.Labels{"env": env}
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: constLabels,
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route", "status"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "active_requests",
			Help:        "Number of in-flight HTTP requests",
			ConstLabels: constLabels,
		},
	)

	m.rateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rate_limit_rejections_total",
			Help:        "Total number of requests rejected by the rate limiter",
			ConstLabels: constLabels,
		},
	)

	m.upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "upstream_requests_total",
			Help:        "Total number of forwarded requests by upstream and outcome",
			ConstLabels: constLabels,
		},
		[]string{"upstream", "outcome"},
	)

	m.upstreamRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "upstream_retries_total",
			Help:        "Total number of retried upstream attempts",
			ConstLabels: constLabels,
		},
		[]string{"upstream"},
	)

	m.upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "upstream_duration_seconds",
			Help:        "Time until upstream response headers, including retries",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	m.introspectionResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "introspections_total",
			Help:        "Total number of token introspections by result",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "build_info",
			Help:        "Build information for the gateway",
			ConstLabels: constLabels,
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "start_time_seconds",
			Help:        "Start time of the gateway in unix seconds",
			ConstLabels: constLabels,
		},
	)

	m.registerCollectors()
	m.startTime.SetToCurrentTime()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.rateLimitRejections,
		m.upstreamRequests,
		m.upstreamRetries,
		m.upstreamDuration,
		m.introspectionResults,
		m.buildInfo,
		m.startTime,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// RecordRequest records a completed HTTP request. All Record methods
// are no-ops on a nil *Metrics.
// route must be the matched route name, never the raw path.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, route, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, route, statusStr).Observe(duration.Seconds())
}

// IncActiveRequests increments the in-flight gauge.
func (m *Metrics) IncActiveRequests() {
	if m == nil {
		return
	}
	m.activeRequests.Inc()
}

// DecActiveRequests decrements the in-flight gauge.
func (m *Metrics) DecActiveRequests() {
	if m == nil {
		return
	}
	m.activeRequests.Dec()
}

// RecordRateLimitRejection records a request rejected with 429.
// Keys are not used as labels; they are unbounded.
func (m *Metrics) RecordRateLimitRejection() {
	if m == nil {
		return
	}
	m.rateLimitRejections.Inc()
}

// RecordUpstream records the final outcome of a forwarded request.
func (m *Metrics) RecordUpstream(upstream, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(upstream, outcome).Inc()
	m.upstreamDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

// RecordUpstreamRetry records one retried upstream attempt.
func (m *Metrics) RecordUpstreamRetry(upstream string) {
	if m == nil {
		return
	}
	m.upstreamRetries.WithLabelValues(upstream).Inc()
}

// RecordIntrospection records an introspection result.
func (m *Metrics) RecordIntrospection(result string) {
	if m == nil {
		return
	}
	m.introspectionResults.WithLabelValues(result).Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
