package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/videotube/backend/internal/apperr"
)

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

const issuer = "videotube"

// Claims is the JWT payload shared by access and refresh tokens.
type Claims struct {
	UserID string    `json:"uid"`
	Kind   tokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// signToken issues an HS256 token for userID. Every token carries a random
// jti so two tokens minted in the same second never compare equal.
func signToken(userID string, kind tokenKind, secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// parseToken verifies signature, expiry and kind. The signature is checked
// before the claims, so an expired token reports Expired only when it was
// genuinely issued with this secret.
func parseToken(raw string, kind tokenKind, secret []byte, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Expired(string(kind) + " token expired")
		}
		return nil, apperr.Unauthorized("invalid " + string(kind) + " token")
	}
	if !parsed.Valid || claims.Kind != kind || claims.UserID == "" {
		return nil, apperr.Unauthorized("invalid " + string(kind) + " token")
	}
	return claims, nil
}
