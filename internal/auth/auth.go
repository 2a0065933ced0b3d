// Package auth guards the link control endpoints with a shared token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// HeaderToken is checked when no bearer Authorization header is present.
const HeaderToken = "X-Chplink-Token"

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token. An empty token rejects
// everything.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// AllowAll is used when the control surface has no token configured.
type AllowAll struct{}

func (AllowAll) Validate(string) error { return nil }

// FromConfig returns StaticToken for a non-empty token and AllowAll otherwise.
func FromConfig(token string) Validator {
	token = strings.TrimSpace(token)
	if token == "" {
		return AllowAll{}
	}
	return StaticToken{Token: token}
}

// RequestToken extracts the caller token from a bearer Authorization header
// or HeaderToken.
func RequestToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderToken))
}
