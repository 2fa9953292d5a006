package proxy

import (
	"net/http"
	"net/textproto"
	"slices"
	"strings"
)

// hopByHopHeaders are meaningful for a single transport leg only and are
// never forwarded in either direction (RFC 7230 section 6.1).
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Header is a single header field.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered list of header fields. Values are treated as
// immutable: every transformation returns a new list and never modifies
// the receiver's backing array.
type Headers []Header

// FromHTTPHeader converts h into a Headers list ordered by name.
// Values of a repeated field keep their original order.
func FromHTTPHeader(h http.Header) Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make(Headers, 0, len(h))
	for _, name := range names {
		for _, value := range h[name] {
			out = append(out, Header{Name: name, Value: value})
		}
	}
	return out
}

// HTTPHeader converts the list into an http.Header.
func (h Headers) HTTPHeader() http.Header {
	out := make(http.Header, len(h))
	for _, f := range h {
		key := textproto.CanonicalMIMEHeaderKey(f.Name)
		out[key] = append(out[key], f.Value)
	}
	return out
}

// Values returns every value of name, compared case-insensitively.
func (h Headers) Values(name string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Get returns the first value of name.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Without returns the list minus every field named in names.
func (h Headers) Without(names ...string) Headers {
	out := make(Headers, 0, len(h))
	for _, f := range h {
		if !containsFold(names, f.Name) {
			out = append(out, f)
		}
	}
	return out
}

// WithoutHopByHop strips the hop-by-hop headers, including any field
// nominated by a Connection header.
func (h Headers) WithoutHopByHop() Headers {
	names := slices.Clone(hopByHopHeaders)
	for _, v := range h.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if token = strings.TrimSpace(token); token != "" {
				names = append(names, token)
			}
		}
	}
	return h.Without(names...)
}

// With returns the list with name replaced by a single value.
func (h Headers) With(name, value string) Headers {
	out := h.Without(name)
	return append(out, Header{Name: name, Value: value})
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
