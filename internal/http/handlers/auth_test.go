package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/accounthub/internal/auth"
	"github.com/geocoder89/accounthub/internal/cache"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/http/handlers"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/jobs"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake implementation of the handlers.AuthService interface

type fakeAuthService struct {
	registerFn func(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error)
	loginFn    func(ctx context.Context, email, password string) (*service.AuthResult, error)
	refreshFn  func(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error)
	logoutFn   func(ctx context.Context, id string) error
	getFn      func(ctx context.Context, id string) (*user.Profile, error)
	updateFn   func(ctx context.Context, id string, patch user.ProfilePatch) (*user.Profile, error)

	getCalls int
}

func (f *fakeAuthService) Register(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, req)
	}
	return &service.AuthResult{}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, email, password)
	}
	return &service.AuthResult{}, nil
}

func (f *fakeAuthService) RefreshToken(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, accessToken, refreshToken)
	}
	return &service.AuthResult{}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, id string) error {
	if f.logoutFn != nil {
		return f.logoutFn(ctx, id)
	}
	return nil
}

func (f *fakeAuthService) GetByID(ctx context.Context, id string) (*user.Profile, error) {
	f.getCalls++
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return &user.Profile{ID: id}, nil
}

func (f *fakeAuthService) UpdateProfile(ctx context.Context, id string, patch user.ProfilePatch) (*user.Profile, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, patch)
	}
	return &user.Profile{ID: id}, nil
}

type fakeEnqueuer struct {
	created []jobs.Job
	err     error
}

func (f *fakeEnqueuer) Create(ctx context.Context, j jobs.Job) error {
	f.created = append(f.created, j)
	return f.err
}

// fakeVerifier lets the protected routes run without minting real tokens.

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f *fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func claimsFor(id string) *auth.Claims {
	return &auth.Claims{
		Email: "jane@example.com",
		Role:  "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: id,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okResult() *service.AuthResult {
	return &service.AuthResult{
		AccessToken:  "access",
		RefreshToken: "refresh",
		UserID:       "u1",
		Email:        "jane@example.com",
		FirstName:    "Jane",
		LastName:     "Doe",
		Role:         "user",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
}

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

// Register tests

func TestRegisterHandler(t *testing.T) {
	validBody := `{
		"email": "jane@example.com",
		"password": "s3cret99",
		"confirmPassword": "s3cret99",
		"firstName": "Jane",
		"lastName": "Doe"
	}`

	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeAuthService)
		wantStatusCode int
		wantJobs       int
	}{
		{
			name: "success",
			body: validBody,
			svcSetup: func(f *fakeAuthService) {
				f.registerFn = func(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error) {
					return okResult(), nil
				}
			},
			wantStatusCode: http.StatusCreated,
			wantJobs:       1,
		},
		{
			name: "validation_error_bad_email",
			body: `{"email": "nope", "password": "s3cret99", "confirmPassword": "s3cret99", "firstName": "Jane", "lastName": "Doe"}`,
			// the service should not be reached
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_error_confirm_mismatch",
			body:           `{"email": "jane@example.com", "password": "s3cret99", "confirmPassword": "other", "firstName": "Jane", "lastName": "Doe"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "duplicate_email",
			body: validBody,
			svcSetup: func(f *fakeAuthService) {
				f.registerFn = func(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error) {
					return nil, service.ErrDuplicateEmail
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "service_error",
			body: validBody,
			svcSetup: func(f *fakeAuthService) {
				f.registerFn = func(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error) {
					return nil, context.DeadlineExceeded
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}

			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}

			queue := &fakeEnqueuer{}
			h := handlers.NewAuthHandler(svc, queue, nil, nil, testLogger())

			r := setupRouter(http.MethodPost, "/auth/register", h.Register)

			w := postJSON(r, "/auth/register", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if len(queue.created) != tt.wantJobs {
				t.Fatalf("got %d enqueued jobs, want %d", len(queue.created), tt.wantJobs)
			}
		})
	}
}

func TestRegisterHandlerEnqueueFailureStillSucceeds(t *testing.T) {
	svc := &fakeAuthService{
		registerFn: func(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error) {
			return okResult(), nil
		},
	}
	queue := &fakeEnqueuer{err: context.DeadlineExceeded}

	h := handlers.NewAuthHandler(svc, queue, nil, nil, testLogger())
	r := setupRouter(http.MethodPost, "/auth/register", h.Register)

	w := postJSON(r, "/auth/register", `{
		"email": "jane@example.com",
		"password": "s3cret99",
		"confirmPassword": "s3cret99",
		"firstName": "Jane",
		"lastName": "Doe"
	}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("registration should survive a dead queue, got %d body=%s", w.Code, w.Body.String())
	}
}

// Login tests

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeAuthService)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"email": "jane@example.com", "password": "s3cret99"}`,
			svcSetup: func(f *fakeAuthService) {
				f.loginFn = func(ctx context.Context, email, password string) (*service.AuthResult, error) {
					return okResult(), nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "invalid_credentials",
			body: `{"email": "jane@example.com", "password": "wrong"}`,
			svcSetup: func(f *fakeAuthService) {
				f.loginFn = func(ctx context.Context, email, password string) (*service.AuthResult, error) {
					return nil, service.ErrInvalidCredentials
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "validation_error",
			body:           `{"email": "jane@example.com"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}

			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}

			h := handlers.NewAuthHandler(svc, nil, nil, nil, testLogger())
			r := setupRouter(http.MethodPost, "/auth/login", h.Login)

			w := postJSON(r, "/auth/login", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Refresh tests

func TestRefreshHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeAuthService)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"accessToken": "expired-but-real", "refreshToken": "opaque"}`,
			svcSetup: func(f *fakeAuthService) {
				f.refreshFn = func(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error) {
					return okResult(), nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "forged_access_token",
			body: `{"accessToken": "forged", "refreshToken": "opaque"}`,
			svcSetup: func(f *fakeAuthService) {
				f.refreshFn = func(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error) {
					return nil, service.ErrInvalidToken
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "stale_refresh_token",
			body: `{"accessToken": "expired-but-real", "refreshToken": "already-rotated"}`,
			svcSetup: func(f *fakeAuthService) {
				f.refreshFn = func(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error) {
					return nil, service.ErrInvalidRefreshToken
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "missing_refresh_token",
			body:           `{"accessToken": "expired-but-real"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}

			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}

			h := handlers.NewAuthHandler(svc, nil, nil, nil, testLogger())
			r := setupRouter(http.MethodPost, "/auth/refresh", h.Refresh)

			w := postJSON(r, "/auth/refresh", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Protected route tests. These mount the real auth middleware with a
// fake verifier so the identity plumbing is exercised too.

func protectedRouter(method, path string, verifier middlewares.TokenVerifier, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	mw := middlewares.NewAuthMiddleware(verifier)
	r.Handle(method, path, mw.RequireAuth(), h)

	return r
}

func TestLogoutHandler(t *testing.T) {
	svc := &fakeAuthService{}
	h := handlers.NewAuthHandler(svc, nil, nil, nil, testLogger())

	r := protectedRouter(http.MethodPost, "/auth/logout", &fakeVerifier{claims: claimsFor("u1")}, h.Logout)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer anything")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestLogoutHandlerMissingToken(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAuthService{}, nil, nil, nil, testLogger())

	r := protectedRouter(http.MethodPost, "/auth/logout", &fakeVerifier{claims: claimsFor("u1")}, h.Logout)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
}

func TestMeHandlerUsesCache(t *testing.T) {
	phone := "555-0100"
	svc := &fakeAuthService{
		getFn: func(ctx context.Context, id string) (*user.Profile, error) {
			return &user.Profile{ID: id, Email: "jane@example.com", PhoneNumber: &phone}, nil
		},
	}

	profiles := cache.NewProfiles(time.Minute)
	h := handlers.NewAuthHandler(svc, nil, profiles, nil, testLogger())

	r := protectedRouter(http.MethodGet, "/auth/me", &fakeVerifier{claims: claimsFor("u1")}, h.Me)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Bearer anything")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, body=%s", i, w.Code, w.Body.String())
		}

		var got user.Profile
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if got.ID != "u1" || got.Email != "jane@example.com" {
			t.Fatalf("unexpected profile: %+v", got)
		}
	}

	if svc.getCalls != 1 {
		t.Fatalf("expected the second read to hit the cache, service was called %d times", svc.getCalls)
	}
}

func TestMeHandlerNotFound(t *testing.T) {
	svc := &fakeAuthService{
		getFn: func(ctx context.Context, id string) (*user.Profile, error) {
			return nil, service.ErrNotFound
		},
	}

	h := handlers.NewAuthHandler(svc, nil, nil, nil, testLogger())
	r := protectedRouter(http.MethodGet, "/auth/me", &fakeVerifier{claims: claimsFor("ghost")}, h.Me)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer anything")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestUpdateProfileHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeAuthService)
		wantStatusCode int
	}{
		{
			name: "partial_update",
			body: `{"phoneNumber": "555-0100"}`,
			svcSetup: func(f *fakeAuthService) {
				f.updateFn = func(ctx context.Context, id string, patch user.ProfilePatch) (*user.Profile, error) {
					if patch.PhoneNumber == nil || *patch.PhoneNumber != "555-0100" {
						t.Fatalf("patch did not carry the phone number: %+v", patch)
					}
					if patch.FirstName != nil {
						t.Fatalf("absent fields must stay nil: %+v", patch)
					}
					return &user.Profile{ID: id, PhoneNumber: patch.PhoneNumber}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "empty_first_name_rejected",
			body:           `{"firstName": ""}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "unknown_user",
			body: `{"phoneNumber": "555-0100"}`,
			svcSetup: func(f *fakeAuthService) {
				f.updateFn = func(ctx context.Context, id string, patch user.ProfilePatch) (*user.Profile, error) {
					return nil, service.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}

			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}

			h := handlers.NewAuthHandler(svc, nil, nil, nil, testLogger())
			r := protectedRouter(http.MethodPut, "/auth/profile", &fakeVerifier{claims: claimsFor("u1")}, h.UpdateProfile)

			req := httptest.NewRequest(http.MethodPut, "/auth/profile", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer anything")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
