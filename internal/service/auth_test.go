package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/repository"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

func newTestAuthenticator() (*Authenticator, *repository.Memory) {
	mem := repository.NewMemory()
	return NewAuthenticator(mem, "test-secret", time.Hour, bcrypt.MinCost), mem
}

func TestCreateKeyAndExchangeForToken(t *testing.T) {
	a, _ := newTestAuthenticator()
	ctx := context.Background()

	issued, err := a.CreateKey(ctx, "box office", model.Permissions{Read: true, Book: true}, 30)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Key, "vk_"))

	p, err := a.VerifyKey(ctx, issued.Key)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, p.KeyID)
	assert.Equal(t, 30, p.RateLimit)

	grant, err := a.IssueToken(ctx, issued.Key)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", grant.TokenType)
	assert.Equal(t, 3600, grant.ExpiresIn)

	fromToken, err := a.VerifyToken(grant.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p, fromToken)
}

func TestVerifyKeyRejectsUnknownKeys(t *testing.T) {
	a, _ := newTestAuthenticator()
	ctx := context.Background()
	issued, err := a.CreateKey(ctx, "partner", model.Permissions{}, 0)
	require.NoError(t, err)

	_, err = a.VerifyKey(ctx, issued.Key+"x")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = a.VerifyKey(ctx, "sk_live_123456789")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = a.IssueToken(ctx, "")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = a.VerifyToken("garbage")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestCreateKeyDefaultsToRead(t *testing.T) {
	a, _ := newTestAuthenticator()
	issued, err := a.CreateKey(context.Background(), "viewer", model.Permissions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, model.Permissions{Read: true}, issued.Permissions)

	_, err = a.CreateKey(context.Background(), " ", model.Permissions{}, 0)
	assert.True(t, errors.Is(err, seating.ErrValidation))
}
