package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyPrefix starts every key this service issues.
const APIKeyPrefix = "vk_"

// apiKeyBody is the number of random characters after the prefix.
const apiKeyBody = 32

// LookupPrefixLen is how many leading characters of a key are stored in
// clear so verification can narrow the candidate hashes.
const LookupPrefixLen = len(APIKeyPrefix) + 8

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateAPIKey returns a new random key such as "vk_3fZ...".
func GenerateAPIKey() (string, error) {
	var b strings.Builder
	b.WriteString(APIKeyPrefix)
	alphabetLen := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < apiKeyBody; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// LookupPrefix returns the clear-text lookup prefix of key, or "" if the
// key is too short to have been issued here.
func LookupPrefix(key string) string {
	if len(key) < LookupPrefixLen || !strings.HasPrefix(key, APIKeyPrefix) {
		return ""
	}
	return key[:LookupPrefixLen]
}

// HashAPIKey returns the bcrypt hash of key using the given cost.
func HashAPIKey(key string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyAPIKey safely compares a bcrypt hash and a plain key.
func VerifyAPIKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
