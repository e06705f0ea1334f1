package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	p := model.Principal{KeyID: "key-1", Name: "box office", Permissions: model.Permissions{Read: true, Book: true}, RateLimit: 30}
	tok, err := NewAccessToken("s3cret", p, time.Hour, time.Now())
	require.NoError(t, err)

	got, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenExpired(t *testing.T) {
	p := model.Principal{KeyID: "key-1"}
	tok, err := NewAccessToken("s3cret", p, time.Minute, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenRejectsNone(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "key-1"}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateAndVerifyAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, APIKeyPrefix))
	assert.Len(t, key, len(APIKeyPrefix)+32)
	assert.Len(t, LookupPrefix(key), LookupPrefixLen)

	hash, err := HashAPIKey(key, bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyAPIKey(hash, key))
	assert.False(t, VerifyAPIKey(hash, key+"x"))
}

func TestLookupPrefixRejectsForeignKeys(t *testing.T) {
	assert.Empty(t, LookupPrefix("vk_short"))
	assert.Empty(t, LookupPrefix("sk_live_0123456789abcdef"))
}
