package utils // package utils provides helpers for API credentials

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT along with its expiry.  It is handed
// out in exchange for an API key and sent back as "Bearer <token>".
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims is the payload of an access token.  The subject is the API key id.
type Claims struct {
	Name        string            `json:"name"`
	Permissions model.Permissions `json:"permissions"`
	RateLimit   int               `json:"rate_limit,omitempty"`
	jwt.RegisteredClaims
}

// NewAccessToken builds and signs an HS256 JWT for an authenticated API
// key.  The token carries the key's permissions so that verifying it does
// not need a database round trip.
func NewAccessToken(secret string, p model.Principal, ttl time.Duration, now time.Time) (AccessToken, error) {
	exp := now.UTC().Add(ttl)
	claims := Claims{
		Name:        p.Name,
		Permissions: p.Permissions,
		RateLimit:   p.RateLimit,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.KeyID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and returns the principal it
// was issued for.  Only HMAC signatures are accepted.
func ParseAccessToken(secret, raw string) (model.Principal, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return model.Principal{}, ErrInvalidToken
	}
	return model.Principal{
		KeyID:       claims.Subject,
		Name:        claims.Name,
		Permissions: claims.Permissions,
		RateLimit:   claims.RateLimit,
	}, nil
}
