package auth

import (
	"crypto/rand"
	"encoding/base64"
)

const refreshTokenBytes = 32

// GenerateRefreshToken produces an opaque random token with 256 bits of
// entropy. It carries no claims and has no cryptographic relationship to
// the signed access token.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}
