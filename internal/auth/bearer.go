package auth

import (
	"strings"
)

// bearerScheme is matched case-insensitively.
const bearerScheme = "bearer "

// ExtractBearerToken returns the token from an Authorization header value.
// The scheme must be "Bearer " in any letter case followed by a non-empty
// token; otherwise ErrMissingToken is returned.
func ExtractBearerToken(header string) (string, error) {
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(header[len(bearerScheme):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// BearerTokenOrEmpty returns the bearer token in header, or "" when the
// header carries none.
func BearerTokenOrEmpty(header string) string {
	token, err := ExtractBearerToken(header)
	if err != nil {
		return ""
	}
	return token
}
