// Package auth issues and verifies the bearer tokens relay clients
// authenticate with.
//
// It owns credential checking and token lifecycle only; transport and
// session policy live with the callers.
package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/danmuck/wardctl/internal/protocol"
)

var (
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrBadCredentials = errors.New("auth: bad credentials")
	ErrTokenRevoked   = errors.New("auth: token revoked")
	ErrNoSecret       = errors.New("auth: signing secret not configured")
)

// Identity is the authenticated principal behind a verified token.
type Identity struct {
	Username string
	Role     protocol.Role
}

// Verifier verifies a bearer token and resolves its identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// StaticToken is a verifier for a single shared token bound to one
// identity. It is intended only for development and tests.
type StaticToken struct {
	Token    string
	Identity Identity
}

func (s StaticToken) Verify(token string) (Identity, error) {
	if s.Token == "" {
		return Identity{}, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return Identity{}, ErrUnauthorized
	}
	return s.Identity, nil
}

// FuncVerifier adapts a function into a Verifier.
type FuncVerifier func(token string) (Identity, error)

func (f FuncVerifier) Verify(token string) (Identity, error) {
	return f(token)
}
