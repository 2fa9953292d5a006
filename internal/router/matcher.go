package router

import (
	"net/http"
	"strings"
)

// PathMatcher matches a normalised request path.
type PathMatcher interface {
	// Match reports whether path matches and returns the wildcard tail.
	Match(path string) (matched bool, tail string)
	Type() string
	Pattern() string
}

// ExactMatcher matches exact paths.
type ExactMatcher struct {
	path string
}

// NewExactMatcher creates a new exact path matcher.
func NewExactMatcher(path string) *ExactMatcher {
	return &ExactMatcher{path: path}
}

// Match checks if the path matches exactly.
func (m *ExactMatcher) Match(path string) (matched bool, tail string) {
	return path == m.path, ""
}

// Type returns the matcher type.
func (m *ExactMatcher) Type() string {
	return "exact"
}

// Pattern returns the pattern.
func (m *ExactMatcher) Pattern() string {
	return m.path
}

// WildcardMatcher matches "<prefix>/<non-empty tail>".
type WildcardMatcher struct {
	prefix string
}

// NewWildcardMatcher creates a matcher for pattern "<prefix>/*".
func NewWildcardMatcher(prefix string) *WildcardMatcher {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &WildcardMatcher{prefix: prefix}
}

// Match checks if path lies strictly below the prefix.
func (m *WildcardMatcher) Match(path string) (matched bool, tail string) {
	if !strings.HasPrefix(path, m.prefix) || len(path) == len(m.prefix) {
		return false, ""
	}
	return true, path[len(m.prefix):]
}

// Type returns the matcher type.
func (m *WildcardMatcher) Type() string {
	return "wildcard"
}

// Pattern returns the pattern.
func (m *WildcardMatcher) Pattern() string {
	return m.prefix + "*"
}

// NewPathMatcher compiles a route pattern.
func NewPathMatcher(pattern string) PathMatcher {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return NewWildcardMatcher(prefix)
	}
	return NewExactMatcher(pattern)
}

// MethodMatcher matches HTTP methods.
type MethodMatcher struct {
	methods map[string]bool
}

// NewMethodMatcher creates a method matcher. GET also admits HEAD.
func NewMethodMatcher(methods []string) *MethodMatcher {
	m := &MethodMatcher{methods: make(map[string]bool, len(methods)+1)}
	for _, method := range methods {
		method = strings.ToUpper(method)
		m.methods[method] = true
		if method == http.MethodGet {
			m.methods[http.MethodHead] = true
		}
	}
	return m
}

// Match checks if the method is allowed.
func (m *MethodMatcher) Match(method string) bool {
	return m.methods[method]
}
