package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/accounthub/internal/cache"
	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/jobs"
	"github.com/geocoder89/accounthub/internal/observability"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthService is the slice of the service layer this handler needs.
// Tests fake it.
type AuthService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	RefreshToken(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*user.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch user.ProfilePatch) (*user.Profile, error)
}

// JobEnqueuer hands welcome-email work to the async pipeline.
type JobEnqueuer interface {
	Create(ctx context.Context, j jobs.Job) error
}

type AuthHandler struct {
	svc      AuthService
	queue    JobEnqueuer
	profiles *cache.Profiles
	prom     *observability.Prom
	log      *slog.Logger
}

// NewAuthHandler wires the auth routes. queue, profiles and prom may be
// nil; the handler degrades to just the credential operations.
func NewAuthHandler(svc AuthService, queue JobEnqueuer, profiles *cache.Profiles, prom *observability.Prom, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		queue:    queue,
		profiles: profiles,
		prom:     prom,
		log:      log,
	}
}

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
	FirstName       string `json:"firstName" binding:"required"`
	LastName        string `json:"lastName" binding:"required"`
	Role            string `json:"role" binding:"omitempty,oneof=user admin"`
	PhoneNumber     string `json:"phoneNumber" binding:"omitempty,max=32"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	AccessToken  string `json:"accessToken" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UpdateProfileRequest struct {
	FirstName      *string `json:"firstName" binding:"omitempty,min=1"`
	LastName       *string `json:"lastName" binding:"omitempty,min=1"`
	PhoneNumber    *string `json:"phoneNumber" binding:"omitempty,max=32"`
	ProfilePicture *string `json:"profilePicture" binding:"omitempty,url"`
	Department     *string `json:"department"`
	StudentID      *string `json:"studentId"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	result, err := h.svc.Register(cctx, service.RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Role:            req.Role,
		PhoneNumber:     req.PhoneNumber,
	})

	if err != nil {
		h.observe("register", err)

		switch {
		case errors.Is(err, service.ErrDuplicateEmail):
			RespondBadRequest(ctx, "Email is already in use.", nil)
		case errors.Is(err, service.ErrPasswordMismatch):
			RespondBadRequest(ctx, "Passwords do not match.", nil)
		default:
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	h.observe("register", nil)
	h.enqueueWelcomeEmail(cctx, requestIDFrom(ctx), result)

	ctx.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	result, err := h.svc.Login(cctx, req.Email, req.Password)

	if err != nil {
		h.observe("login", err)

		if errors.Is(err, service.ErrInvalidCredentials) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		RespondInternal(ctx, "Could not log in")
		return
	}

	h.observe("login", nil)

	ctx.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	result, err := h.svc.RefreshToken(cctx, req.AccessToken, req.RefreshToken)

	if err != nil {
		h.observe("refresh", err)

		switch {
		case errors.Is(err, service.ErrInvalidToken):
			RespondUnAuthorized(ctx, "invalid_token", "Invalid access token.")
		case errors.Is(err, service.ErrInvalidRefreshToken):
			RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		default:
			RespondInternal(ctx, "Could not refresh session")
		}
		return
	}

	h.observe("refresh", nil)

	ctx.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok || id == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.svc.Logout(cctx, id)

	if err != nil {
		h.observe("logout", err)

		if errors.Is(err, service.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not log out")
		return
	}

	h.observe("logout", nil)

	if h.profiles != nil {
		h.profiles.Invalidate(id)
	}

	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok || id == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	if h.profiles != nil {
		if p, ok := h.profiles.Get(id); ok {
			ctx.JSON(http.StatusOK, p)
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	p, err := h.svc.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not load profile")
		return
	}

	if h.profiles != nil {
		h.profiles.Set(id, *p)
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok || id == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.svc.UpdateProfile(cctx, id, user.ProfilePatch{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		PhoneNumber:    req.PhoneNumber,
		ProfilePicture: req.ProfilePicture,
		Department:     req.Department,
		StudentID:      req.StudentID,
	})

	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update profile")
		return
	}

	if h.profiles != nil {
		h.profiles.Invalidate(id)
	}

	ctx.JSON(http.StatusOK, p)
}

// Helper functions

func (h *AuthHandler) enqueueWelcomeEmail(ctx context.Context, requestID string, result *service.AuthResult) {
	if h.queue == nil {
		return
	}

	payload, err := jobs.EncodePayload(jobs.JobSendWelcomeEmail, jobs.WelcomeEmailPayload{
		UserID:    result.UserID,
		Email:     result.Email,
		FirstName: result.FirstName,
		RequestID: requestID,
	})

	if err != nil {
		h.log.Error("encode welcome email payload", "err", err)
		return
	}

	j, err := jobs.NewJob(jobs.JobSendWelcomeEmail, payload, time.Time{})

	if err != nil {
		h.log.Error("build welcome email job", "err", err)
		return
	}

	// registration already succeeded; a failed enqueue only costs the email
	if err := h.queue.Create(ctx, j); err != nil {
		h.log.Error("enqueue welcome email", "user_id", result.UserID, "err", err)
	}
}

func (h *AuthHandler) observe(op string, err error) {
	if h.prom == nil {
		return
	}

	result := "ok"

	switch {
	case err == nil:
	case errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrNotFound):
		result = "rejected"
	default:
		result = "error"
	}

	h.prom.ObserveAuth(op, result)
}
