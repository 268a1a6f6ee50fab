// Package auth holds the credential and token primitives of the identity
// subsystem: bcrypt password hashing, the HS256 signing primitive, and the
// two token variants built on it (session tokens and media access tokens).
//
// The variants never share a verifier. Each Verify decodes into its own claim
// type and rejects any token whose audience or claim shape belongs to the
// other variant, so a media token cannot be replayed as a session and the
// other way round.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptySecret is returned when a signer is built without key material.
var ErrEmptySecret = errors.New("signing secret is empty")

// Signer signs and parses HS256 JWTs bound to a single audience.
type Signer struct {
	key      []byte
	audience string
	now      func() time.Time
}

func NewSigner(secret []byte, audience string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Signer{key: secret, audience: audience, now: time.Now}, nil
}

// WithClock returns a copy of s reading time from now. Used by tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}

func (s *Signer) Audience() string { return s.audience }

func (s *Signer) Now() time.Time { return s.now() }

func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse verifies signature, algorithm, audience and expiry, and decodes the
// payload into claims. Every failure wraps common.ErrInvalidToken.
func (s *Signer) Parse(tokenString string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	}, opts...)

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}

	return nil
}
