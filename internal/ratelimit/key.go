package ratelimit

// Key prefixes keep token and address keys in separate namespaces.
const (
	tokenKeyPrefix = "token:"
	ipKeyPrefix    = "ip:"
)

// Key returns the rate limit key for a request: the bearer token if one
// was presented, otherwise the client IP.
func Key(bearerToken, clientIP string) string {
	if bearerToken != "" {
		return tokenKeyPrefix + bearerToken
	}
	return ipKeyPrefix + clientIP
}
