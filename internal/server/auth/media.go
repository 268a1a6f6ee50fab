package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const MediaAudience = "fittrack:media"

// MediaClaims carries only the user id and expiry. It proves identity for a
// media fetch; ownership of the requested item is checked separately.
type MediaClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// MediaTokens issues and verifies media access tokens. A fresh token is
// minted per listing, so many may be live for one user at a time.
type MediaTokens struct {
	signer *Signer
	ttl    time.Duration
}

func NewMediaTokens(signer *Signer, ttl time.Duration) *MediaTokens {
	return &MediaTokens{signer: signer, ttl: ttl}
}

func (m *MediaTokens) Issue(userID int64) (string, time.Time, error) {
	exp := m.signer.Now().Add(m.ttl)

	token, err := m.signer.Sign(MediaClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{MediaAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign media token: %w", err)
	}

	return token, exp, nil
}

// Verify returns the user id carried by a valid media token. Tokens with an
// issued-at claim have the session shape and are rejected.
func (m *MediaTokens) Verify(token string) (int64, error) {
	claims := &MediaClaims{}
	if err := m.signer.Parse(token, claims); err != nil {
		return 0, err
	}

	if claims.IssuedAt != nil || claims.UserID <= 0 {
		return 0, common.ErrInvalidToken
	}

	return claims.UserID, nil
}
