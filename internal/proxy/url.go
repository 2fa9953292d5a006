package proxy

import (
	"strings"
)

// JoinURL builds the upstream URL from a base URL, an escaped path suffix
// and a raw query string. Exactly one slash separates base and suffix;
// no other segment is added or removed and nothing is re-encoded.
func JoinURL(base, suffix, rawQuery string) string {
	var b strings.Builder
	b.Grow(len(base) + len(suffix) + len(rawQuery) + 2)

	b.WriteString(strings.TrimSuffix(base, "/"))
	b.WriteByte('/')
	b.WriteString(strings.TrimPrefix(suffix, "/"))
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String()
}
