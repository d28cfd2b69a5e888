// Package service holds the auth orchestrator: the business rules for
// registration, login, refresh-token rotation, logout and profile updates.
// It talks to the credential store, the password hasher and the token
// signer, and nothing talks back into it.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/accounthub/internal/auth"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/google/uuid"
)

var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidToken        = errors.New("invalid access token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotFound            = errors.New("user not found")
	ErrPasswordMismatch    = errors.New("passwords do not match")
)

const defaultRole = "user"

// UserStore is the credential store contract. Update must apply the mutate
// func atomically with respect to the record (no interleaved
// read-modify-write on the same id).
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.User) error
	Update(ctx context.Context, id string, mutate func(*user.User) error) (user.User, error)
}

// PasswordHasher mirrors security.Hasher; declared here so tests can fake
// it without importing bcrypt.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenSigner is the slice of auth.Manager the orchestrator needs.
type TokenSigner interface {
	GenerateAccessToken(userID, email, firstName, lastName, role string) (string, time.Time, error)
	VerifyExpiredAccessToken(token string) (*auth.Claims, error)
}

type AuthService struct {
	store      UserStore
	hasher     PasswordHasher
	signer     TokenSigner
	refreshTTL time.Duration

	// swapped out in tests
	newRefreshToken func() (string, error)
}

func NewAuthService(store UserStore, hasher PasswordHasher, signer TokenSigner, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		store:           store,
		hasher:          hasher,
		signer:          signer,
		refreshTTL:      refreshTTL,
		newRefreshToken: auth.GenerateRefreshToken,
	}
}

type RegisterRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
	PhoneNumber     string
}

// AuthResult is the response for every successful credential operation.
type AuthResult struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         string    `json:"role"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Register creates the account and opens a session in one step: the new
// record is written with a live refresh token already on it.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	email := normalizeEmail(req.Email)

	hash, err := s.hasher.Hash(req.Password)

	if err != nil {
		return nil, err
	}

	role := req.Role

	if role == "" {
		role = defaultRole
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
	}

	if req.PhoneNumber != "" {
		phone := req.PhoneNumber
		u.PhoneNumber = &phone
	}

	refresh, err := s.newRefreshToken()

	if err != nil {
		return nil, err
	}

	u.SetRefreshToken(refresh, now.Add(s.refreshTTL))

	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, ErrDuplicateEmail
		}

		return nil, err
	}

	return s.authResult(&u, refresh)
}

// Login verifies the credentials and rotates the refresh token. Unknown
// email and wrong password are deliberately the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	found, err := s.store.GetByEmail(ctx, normalizeEmail(email))

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if !s.hasher.Verify(password, found.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	refresh, err := s.newRefreshToken()

	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	updated, err := s.store.Update(ctx, found.ID, func(u *user.User) error {
		u.LastLogin = &now
		u.SetRefreshToken(refresh, now.Add(s.refreshTTL))
		return nil
	})

	if err != nil {
		return nil, err
	}

	return s.authResult(&updated, refresh)
}

// RefreshToken exchanges an expired (but unforged) access token plus the
// matching refresh token for a new pair. The old refresh token is gone the
// moment this succeeds; replaying it fails.
func (s *AuthService) RefreshToken(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	// lenient verification: signature must hold, expiry may have passed
	claims, err := s.signer.VerifyExpiredAccessToken(accessToken)

	if err != nil {
		return nil, ErrInvalidToken
	}

	next, err := s.newRefreshToken()

	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	updated, err := s.store.Update(ctx, claims.UserID(), func(u *user.User) error {
		if u.SessionState(now) != user.SessionAuthenticated {
			return ErrInvalidRefreshToken
		}

		if subtle.ConstantTimeCompare([]byte(*u.RefreshToken), []byte(refreshToken)) != 1 {
			return ErrInvalidRefreshToken
		}

		u.SetRefreshToken(next, now.Add(s.refreshTTL))
		return nil
	})

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}

		return nil, err
	}

	return s.authResult(&updated, next)
}

// GetByID returns the public projection of one account.
func (s *AuthService) GetByID(ctx context.Context, id string) (*user.Profile, error) {
	u, err := s.store.GetByID(ctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	p := u.Profile()

	return &p, nil
}

// UpdateProfile applies the present patch fields; absent fields stay as
// they were.
func (s *AuthService) UpdateProfile(ctx context.Context, id string, patch user.ProfilePatch) (*user.Profile, error) {
	now := time.Now().UTC()

	updated, err := s.store.Update(ctx, id, func(u *user.User) error {
		u.Apply(patch, now)
		return nil
	})

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	p := updated.Profile()

	return &p, nil
}

// Logout clears the refresh token pair. Idempotent: logging out twice is
// still success; only a nonexistent id is NotFound.
func (s *AuthService) Logout(ctx context.Context, id string) error {
	_, err := s.store.Update(ctx, id, func(u *user.User) error {
		u.ClearRefreshToken()
		return nil
	})

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrNotFound
		}

		return err
	}

	return nil
}

func (s *AuthService) authResult(u *user.User, refreshToken string) (*AuthResult, error) {
	access, expiresAt, err := s.signer.GenerateAccessToken(u.ID, u.Email, u.FirstName, u.LastName, u.Role)

	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		UserID:       u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		ExpiresAt:    expiresAt,
	}, nil
}

// Emails are stored and compared lower-cased.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
