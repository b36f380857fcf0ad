// Package auth verifies client-supplied bearer tokens before a session
// is allowed to start. Token and key material are never logged; callers
// get classified errors only.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by the verifier. ErrInvalidToken wraps the underlying
// parse/verification failure.
var (
	ErrKeyNotConfigured = errors.New("verification key not configured")
	ErrMissingToken     = errors.New("missing token")
	ErrInvalidToken     = errors.New("invalid token")
)

// Verifier checks token signatures against a fixed RSA public key.
// Immutable after construction and safe for concurrent use.
type Verifier struct {
	key *rsa.PublicKey
}

// NewVerifier parses a PEM-encoded RSA public key. An empty PEM string
// yields ErrKeyNotConfigured so the caller can refuse all connections
// rather than start an unverifiable service.
func NewVerifier(publicKeyPEM string) (*Verifier, error) {
	if publicKeyPEM == "" {
		return nil, ErrKeyNotConfigured
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse verification key: %w", err)
	}
	return &Verifier{key: key}, nil
}

// Verify checks the signature and standard time claims of a bearer token.
// Returns nil only for a token signed by the configured key.
func (v *Verifier) Verify(token string) error {
	if v == nil || v.key == nil {
		return ErrKeyNotConfigured
	}
	if token == "" {
		return ErrMissingToken
	}

	_, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}
