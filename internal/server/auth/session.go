package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionAudience  = "fittrack:session"
	sessionTokenType = "session"
)

// SessionClaims is the payload of the main bearer token.
type SessionClaims struct {
	UserID int64  `json:"uid"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// SessionTokens issues and verifies session tokens. There is no server-side
// session table and no revocation: ttl is the only bound on a leaked token.
type SessionTokens struct {
	signer *Signer
	ttl    time.Duration
}

func NewSessionTokens(signer *Signer, ttl time.Duration) *SessionTokens {
	return &SessionTokens{signer: signer, ttl: ttl}
}

func (s *SessionTokens) TTL() time.Duration { return s.ttl }

// Issue mints a token for userID and returns it with its expiry.
func (s *SessionTokens) Issue(userID int64) (string, time.Time, error) {
	now := s.signer.Now()
	exp := now.Add(s.ttl)

	token, err := s.signer.Sign(SessionClaims{
		UserID: userID,
		Type:   sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{SessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	return token, exp, nil
}

// Verify returns the user id carried by a valid session token. Malformed,
// badly signed, expired and wrong-shape tokens all yield common.ErrInvalidToken.
func (s *SessionTokens) Verify(token string) (int64, error) {
	claims := &SessionClaims{}
	if err := s.signer.Parse(token, claims, jwt.WithIssuedAt()); err != nil {
		return 0, err
	}

	if claims.Type != sessionTokenType || claims.IssuedAt == nil || claims.UserID <= 0 {
		return 0, common.ErrInvalidToken
	}

	return claims.UserID, nil
}
