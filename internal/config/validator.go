package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(config *GatewayConfig) error {
	v := NewValidator()
	return v.Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&config.Server)
	v.validateLogging(&config.Logging)
	v.validateRateLimit(&config.RateLimit)
	v.validateProxy(&config.Proxy)
	v.validateUpstreams(config.Upstreams)
	v.validateRoutes(config.Routes, config.Upstreams)
	v.validateAuth(config)
	v.validateCORS(&config.CORS)
	v.validateMetrics(&config.Metrics)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// addError records a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

// validateServer validates listener settings.
func (v *Validator) validateServer(s *ServerConfig) {
	if s.ListenAddr == "" {
		v.addError("server.listenAddr", "listen address is required")
	}
	if s.APIPrefix != "" && (!strings.HasPrefix(s.APIPrefix, "/") || strings.HasSuffix(s.APIPrefix, "/")) {
		v.addError("server.apiPrefix", "must start with '/' and must not end with '/'")
	}
	if strings.TrimSpace(s.RequestIDHeader) == "" {
		v.addError("server.requestIDHeader", "request ID header is required")
	}
	if s.ShutdownTimeout.Duration() <= 0 {
		v.addError("server.shutdownTimeout", "must be positive")
	}
	for i, p := range s.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			v.addError(fmt.Sprintf("server.trustedProxies[%d]", i), "must be an IP address or CIDR")
		}
	}
}

// validateLogging validates logger settings.
func (v *Validator) validateLogging(l *LoggingConfig) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", "must be one of debug, info, warn, error")
	}
	switch l.Format {
	case "json", "console":
	default:
		v.addError("logging.format", "must be json or console")
	}
}

// validateRateLimit validates limiter settings.
func (v *Validator) validateRateLimit(rl *RateLimitConfig) {
	if rl.RPS <= 0 {
		v.addError("rateLimit.rps", "must be positive")
	}
	if rl.Burst <= 0 {
		v.addError("rateLimit.burst", "must be positive")
	}
	if rl.Window.Duration() <= 0 {
		v.addError("rateLimit.window", "must be positive")
	}
	if rl.SweepInterval.Duration() < 0 {
		v.addError("rateLimit.sweepInterval", "must not be negative")
	}
}

// validateProxy validates forwarding settings.
func (v *Validator) validateProxy(p *ProxyConfig) {
	if p.Timeout.Duration() <= 0 {
		v.addError("proxy.timeout", "must be positive")
	}
	if p.Retries < 0 {
		v.addError("proxy.retries", "must not be negative")
	}
	if p.RetryBackoff.Duration() <= 0 {
		v.addError("proxy.retryBackoff", "must be positive")
	}
	if p.JitterFactor < 0 || p.JitterFactor > 1 {
		v.addError("proxy.jitterFactor", "must be between 0 and 1")
	}
	if p.MaxBodyBytes <= 0 {
		v.addError("proxy.maxBodyBytes", "must be positive")
	}
	if p.MaxConns <= 0 {
		v.addError("proxy.maxConns", "must be positive")
	}
	if p.MaxIdleConns < 0 {
		v.addError("proxy.maxIdleConns", "must not be negative")
	}
}

// validateUpstreams validates upstream base URLs.
func (v *Validator) validateUpstreams(upstreams map[string]string) {
	for name, raw := range upstreams {
		path := "upstreams." + name
		u, err := url.Parse(raw)
		if err != nil {
			v.addError(path, fmt.Sprintf("invalid URL: %v", err))
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			v.addError(path, "scheme must be http or https")
		}
		if u.Host == "" {
			v.addError(path, "host is required")
		}
		if u.RawQuery != "" || u.Fragment != "" {
			v.addError(path, "must not contain a query or fragment")
		}
	}
}

// validateRoutes validates the route table.
func (v *Validator) validateRoutes(routes []RouteConfig, upstreams map[string]string) {
	if len(routes) == 0 {
		v.addError("routes", "at least one route is required")
	}

	names := make(map[string]bool, len(routes))
	for i, r := range routes {
		path := fmt.Sprintf("routes[%d]", i)

		if r.Name == "" {
			v.addError(path+".name", "name is required")
		} else if names[r.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate route name %q", r.Name))
		}
		names[r.Name] = true

		if err := ValidatePattern(r.Pattern); err != nil {
			v.addError(path+".pattern", err.Error())
		}

		if len(r.Methods) == 0 {
			v.addError(path+".methods", "at least one method is required")
		}

		if _, ok := upstreams[r.Upstream]; !ok {
			v.addError(path+".upstream", fmt.Sprintf("unknown upstream %q", r.Upstream))
		}

		if strings.Contains(r.UpstreamPath, "{path}") && !strings.HasSuffix(r.Pattern, "/*") {
			v.addError(path+".upstreamPath", "{path} requires a wildcard pattern")
		}
	}
}

// ValidatePattern checks a route pattern: a literal path starting with '/',
// optionally ending in a single "/*" wildcard tail.
func ValidatePattern(pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("pattern %q must start with '/'", pattern)
	}
	literal := strings.TrimSuffix(pattern, "/*")
	if strings.Contains(literal, "*") {
		return fmt.Errorf("pattern %q may only contain a trailing '/*'", pattern)
	}
	if literal != "/" && strings.HasSuffix(literal, "/") {
		return fmt.Errorf("pattern %q must not end with '/'", pattern)
	}
	return nil
}

// validateAuth validates introspection settings when protected routes exist.
func (v *Validator) validateAuth(config *GatewayConfig) {
	protected := false
	for _, r := range config.Routes {
		if r.Auth {
			protected = true
			break
		}
	}
	if !protected {
		return
	}
	if _, ok := config.Upstreams[config.Auth.Upstream]; !ok {
		v.addError("auth.upstream", fmt.Sprintf("unknown upstream %q", config.Auth.Upstream))
	}
	if !strings.HasPrefix(config.Auth.IntrospectPath, "/") {
		v.addError("auth.introspectPath", "must start with '/'")
	}
}

// validateCORS validates CORS settings.
func (v *Validator) validateCORS(c *CORSConfig) {
	for i, origin := range c.AllowOrigins {
		if strings.TrimSpace(origin) == "" {
			v.addError(fmt.Sprintf("cors.allowOrigins[%d]", i), "origin must not be empty")
		}
	}
}

// validateMetrics validates the metrics listener.
func (v *Validator) validateMetrics(m *MetricsConfig) {
	if !m.Enabled {
		return
	}
	if m.Addr == "" {
		v.addError("metrics.addr", "address is required when metrics are enabled")
	}
	if !strings.HasPrefix(m.Path, "/") {
		v.addError("metrics.path", "must start with '/'")
	}
}
