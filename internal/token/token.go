package token

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure on untrusted input:
// malformed tokens, bad signatures, wrong signing methods, and expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims embeds the standard registered claims plus a stable user identifier
// and the credentials version the token was issued against. A password change
// bumps the stored version, which invalidates every previously issued token
// without a revocation list.
type Claims struct {
	jwt.RegisteredClaims
	UserID       int64 `json:"uid"`
	CredsVersion int   `json:"cv"`
}

type Service struct {
	secret []byte
}

func NewService(secret []byte) *Service {
	return &Service{secret: secret}
}

// Issue signs a token for the given user valid for ttl. A signing failure is
// a server fault, not a client one.
func (s *Service) Issue(userID int64, credsVersion int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:       userID,
		CredsVersion: credsVersion,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and returns the decoded claims. It
// always returns ErrInvalidToken for bad input rather than the parser's
// internal error.
func (s *Service) Verify(raw string) (Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
