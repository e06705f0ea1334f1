package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
	"github.com/iliyamo/theater-seat-booking/internal/utils"
)

// ErrUnauthorized is returned for missing, unknown, revoked or expired
// credentials.  Handlers answer it with 401.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator issues API keys, verifies them and exchanges them for
// short-lived access tokens.
type Authenticator struct {
	keys   APIKeyStore
	secret string
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// NewAuthenticator returns an authenticator signing tokens with secret.
// bcryptCost applies to newly issued keys.
func NewAuthenticator(keys APIKeyStore, secret string, ttl time.Duration, bcryptCost int) *Authenticator {
	return &Authenticator{keys: keys, secret: secret, ttl: ttl, cost: bcryptCost, now: time.Now}
}

// IssuedKey is returned once when a key is created; the plain key cannot
// be recovered later.
type IssuedKey struct {
	ID          string            `json:"id"`
	Key         string            `json:"api_key"`
	Name        string            `json:"name"`
	Permissions model.Permissions `json:"permissions"`
	RateLimit   int               `json:"rate_limit"`
	CreatedAt   time.Time         `json:"created_at"`
}

// CreateKey generates, hashes and stores a new API key.
func (a *Authenticator) CreateKey(ctx context.Context, name string, perms model.Permissions, rateLimit int) (IssuedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return IssuedKey{}, seating.NewError(seating.ErrValidation, "create key", "name is required", nil)
	}
	if rateLimit < 0 {
		return IssuedKey{}, seating.NewError(seating.ErrValidation, "create key", "rate_limit must not be negative", nil)
	}
	if perms == (model.Permissions{}) {
		perms.Read = true
	}
	plain, err := utils.GenerateAPIKey()
	if err != nil {
		return IssuedKey{}, fmt.Errorf("generate key: %w", err)
	}
	hash, err := utils.HashAPIKey(plain, a.cost)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("hash key: %w", err)
	}
	k := model.APIKey{
		ID:          uuid.NewString(),
		Prefix:      utils.LookupPrefix(plain),
		KeyHash:     hash,
		Name:        name,
		Permissions: perms,
		RateLimit:   rateLimit,
		IsActive:    true,
		CreatedAt:   a.now().UTC(),
	}
	if err := a.keys.CreateKey(ctx, &k); err != nil {
		return IssuedKey{}, err
	}
	log.Printf("auth: issued api key id=%s name=%q", k.ID, k.Name)
	return IssuedKey{
		ID:          k.ID,
		Key:         plain,
		Name:        k.Name,
		Permissions: k.Permissions,
		RateLimit:   k.RateLimit,
		CreatedAt:   k.CreatedAt,
	}, nil
}

// VerifyKey checks a plain API key against the stored hashes.
func (a *Authenticator) VerifyKey(ctx context.Context, raw string) (model.Principal, error) {
	prefix := utils.LookupPrefix(strings.TrimSpace(raw))
	if prefix == "" {
		return model.Principal{}, ErrUnauthorized
	}
	candidates, err := a.keys.KeysByPrefix(ctx, prefix)
	if err != nil {
		return model.Principal{}, err
	}
	for _, k := range candidates {
		if !utils.VerifyAPIKey(k.KeyHash, strings.TrimSpace(raw)) {
			continue
		}
		if err := a.keys.TouchKey(ctx, k.ID, a.now().UTC()); err != nil {
			log.Printf("auth: touch key %s failed: %v", k.ID, err)
		}
		return model.Principal{
			KeyID:       k.ID,
			Name:        k.Name,
			Permissions: k.Permissions,
			RateLimit:   k.RateLimit,
		}, nil
	}
	return model.Principal{}, ErrUnauthorized
}

// VerifyToken parses an access token issued by IssueToken.
func (a *Authenticator) VerifyToken(raw string) (model.Principal, error) {
	p, err := utils.ParseAccessToken(a.secret, raw)
	if err != nil {
		return model.Principal{}, ErrUnauthorized
	}
	return p, nil
}

// TokenGrant is the answer of the token exchange.
type TokenGrant struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int               `json:"expires_in"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Permissions model.Permissions `json:"permissions"`
}

// IssueToken exchanges a plain API key for a signed access token.
func (a *Authenticator) IssueToken(ctx context.Context, rawKey string) (TokenGrant, error) {
	p, err := a.VerifyKey(ctx, rawKey)
	if err != nil {
		return TokenGrant{}, err
	}
	tok, err := utils.NewAccessToken(a.secret, p, a.ttl, a.now())
	if err != nil {
		return TokenGrant{}, fmt.Errorf("sign token: %w", err)
	}
	return TokenGrant{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(a.ttl / time.Second),
		ExpiresAt:   tok.Exp,
		Permissions: p.Permissions,
	}, nil
}
