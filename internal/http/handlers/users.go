package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/domain/job"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/jobs"
	"github.com/geocoder89/ratehub/internal/security"
	"github.com/gin-gonic/gin"
)

type UserLister interface {
	List(ctx context.Context, filter user.ListUsersFilter) ([]user.WithStats, error)
	GetWithStats(ctx context.Context, id string) (user.WithStats, error)
}

type UsersHandler struct {
	users  UserLister
	writer UserWriter
	queue  JobEnqueuer
	cfg    config.Config
}

func NewUsersHandler(users UserLister, writer UserWriter, queue JobEnqueuer, cfg config.Config) *UsersHandler {
	return &UsersHandler{
		users:  users,
		writer: writer,
		queue:  queue,
		cfg:    cfg,
	}
}

// List is the admin directory. All filters are optional; string filters
// are case-insensitive substring matches, role is an exact match.
func (h *UsersHandler) List(ctx *gin.Context) {
	filter := user.ListUsersFilter{
		Sort: ctx.Query("sort"),
	}

	if v := ctx.Query("name"); v != "" {
		filter.Name = &v
	}
	if v := ctx.Query("email"); v != "" {
		filter.Email = &v
	}
	if v := ctx.Query("address"); v != "" {
		filter.Address = &v
	}
	if v := ctx.Query("role"); v != "" {
		role := user.Role(v)

		if !role.IsValid() {
			RespondBadRequest(ctx, "Unknown role filter", gin.H{"role": v})
			return
		}
		filter.Role = &role
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	list, err := h.users.List(cctx, filter)

	if err != nil {
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not list users", nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": list})
}

// Create provisions an account with an explicit role; this is how owner and
// admin accounts come into existence.
func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateUserRequest

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

	u, err := h.writer.Create(cctx, req.Name, req.Email, hash, req.Address, req.Role)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not create user", nil)
		return
	}

	h.enqueueWelcome(cctx, u.ID)

	ctx.JSON(http.StatusCreated, gin.H{"user": u})
}

func (h *UsersHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetWithStats(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not load user", nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *UsersHandler) enqueueWelcome(ctx context.Context, userID string) {
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

	_, _ = h.queue.Create(ctx, job.CreateRequest{
		Type:    string(jobs.JobWelcomeUser),
		Payload: payload,
	})
}
