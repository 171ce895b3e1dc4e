package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/ratehub/internal/auth"
	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/domain/job"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/http/middlewares"
	"github.com/geocoder89/ratehub/internal/jobs"
	"github.com/geocoder89/ratehub/internal/security"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, name, email, passwordHash, address string, role user.Role) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// JobEnqueuer decouples handlers from the jobs table; tests fake it.
type JobEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        *auth.Manager
	queue      JobEnqueuer
	cfg        config.Config
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, queue JobEnqueuer, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
		queue:      queue,
		cfg:        cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Address  string `json:"address" binding:"omitempty,max=400"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// SignUp is the self-service path: everyone who registers here starts as a
// Normal User. Owner and admin accounts are only provisioned by an admin.
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if err := security.ValidatePasswordPolicy(req.Password); err != nil {
		RespondBadRequest(ctx, err.Error(), gin.H{"field": "password"})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.userWriter.Create(cctx, req.Name, req.Email, hash, req.Address, user.RoleNormal)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	h.enqueueWelcome(cctx, u.ID)

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, string(u.Role))

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"accessToken": accessToken,
		"user":        u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(foundUser.ID, foundUser.Email, string(foundUser.Role))

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"user":        foundUser,
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// UpdatePassword re-checks the current password before accepting the new
// one; holding a valid token is not enough on its own.
func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req UpdatePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if err := security.ValidatePasswordPolicy(req.NewPassword); err != nil {
		RespondBadRequest(ctx, err.Error(), gin.H{"field": "newPassword"})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not update password")
		return
	}

	err = security.CheckPassword(u.PasswordHash, req.CurrentPassword)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Current password is incorrect.")
		return
	}

	hash, err := security.HashPassword(req.NewPassword)

	if err != nil {
		RespondInternal(ctx, "Could not update password")
		return
	}

	err = h.userWriter.UpdatePassword(cctx, userID, hash)

	if err != nil {
		RespondInternal(ctx, "Could not update password")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *AuthHandler) enqueueWelcome(ctx context.Context, userID string) {
	if h.queue == nil {
		return
	}

	payload, err := jobs.EncodePayload(jobs.JobWelcomeUser, jobs.WelcomeUserPayload{
		UserID:      userID,
		RequestedAt: time.Now().UTC(),
	})

	if err != nil {
		return
	}

	// best effort: a lost welcome email never fails the signup
	_, _ = h.queue.Create(ctx, job.CreateRequest{
		Type:    string(jobs.JobWelcomeUser),
		Payload: payload,
	})
}
