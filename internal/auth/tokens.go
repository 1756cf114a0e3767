package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// NewFeedToken mints a feed token plus the bcrypt hash to persist for it.
// The token itself is shown to the subscriber once and never stored.
func NewFeedToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate feed token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)

	digest, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash feed token: %w", err)
	}
	return token, string(digest), nil
}

// VerifyFeedToken reports whether token matches the stored hash.
func VerifyFeedToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
