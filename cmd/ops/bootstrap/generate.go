package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// tokenByteLength gives 256 bits of entropy, hex-encoded to 64 characters.
const tokenByteLength = 32

// GenerateSecureToken returns a random hex token for service secrets.
func GenerateSecureToken() (string, error) {
	b := make([]byte, tokenByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashServiceSecret produces the S2S_SECRET_HASH value the API's bcrypt
// authenticator compares incoming service credentials against.
func HashServiceSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing service secret: %w", err)
	}
	return string(hash), nil
}
