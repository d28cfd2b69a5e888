package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HS256 needs a key at least as long as the hash output.
const minSecretLen = 32

var (
	ErrSecretTooShort = fmt.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	ErrInvalidToken   = errors.New("invalid token")
)

// Claims are the identity attributes embedded in every access token.
// The subject is the user id.
type Claims struct {
	Email     string `json:"email"`
	FirstName string `json:"given_name"`
	LastName  string `json:"family_name"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

// Manager signs and verifies access tokens. Stateless; a single shared
// secret keys every token.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

func NewManager(secret string, accessTTL time.Duration) (*Manager, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}

	return &Manager{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}, nil
}

// GenerateAccessToken issues a signed token for the given identity. The
// expiry is fixed at issuance time and returned alongside the token.
func (m *Manager) GenerateAccessToken(userID, email, firstName, lastName, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.accessTTL)

	claims := Claims{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)

	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// VerifyAccessToken checks the signature and the expiry. No clock-skew
// grace window.
func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, m.keyFunc)

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyExpiredAccessToken checks the signature only, accepting a token
// whose expiry has passed. It exists solely so the refresh-token exchange
// can identify whose refresh token to check from an expired-but-unforged
// access token. Nothing else should call it.
func (m *Manager) VerifyExpiredAccessToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, m.keyFunc, jwt.WithoutClaimsValidation())

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	// Enforce HS256
	_, ok := t.Method.(*jwt.SigningMethodHMAC)

	if !ok {
		return nil, errors.New("unexpected signing method")
	}
	return m.secret, nil
}
