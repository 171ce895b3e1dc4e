package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/domain/job"
	"github.com/geocoder89/ratehub/internal/domain/rating"
	"github.com/geocoder89/ratehub/internal/domain/store"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/http/middlewares"
	"github.com/geocoder89/ratehub/internal/jobs"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/gin-gonic/gin"
)

type StoreReader interface {
	ListWithRatings(ctx context.Context, filter store.ListStoresFilter, viewerID *string) ([]store.WithRatings, error)
	GetByID(ctx context.Context, id string) (store.Store, error)
	OwnerStats(ctx context.Context, ownerID string) (store.OwnerStats, error)
	AdminStats(ctx context.Context) (store.AdminStats, error)
}

type StoreWriter interface {
	Create(ctx context.Context, req store.CreateStoreRequest) (store.Store, error)
}

type RatingWriter interface {
	Upsert(ctx context.Context, userID, storeID string, value int) (rating.Rating, bool, error)
	AverageForStore(ctx context.Context, storeID string) (float64, int, error)
}

type StoresHandler struct {
	stores  StoreReader
	writer  StoreWriter
	ratings RatingWriter
	queue   JobEnqueuer
	prom    *observability.Prom
	cfg     config.Config
}

func NewStoresHandler(stores StoreReader, writer StoreWriter, ratings RatingWriter, queue JobEnqueuer, prom *observability.Prom, cfg config.Config) *StoresHandler {
	return &StoresHandler{
		stores:  stores,
		writer:  writer,
		ratings: ratings,
		queue:   queue,
		prom:    prom,
		cfg:     cfg,
	}
}

// List serves every authenticated role. Each row carries the current
// average and the caller's own rating (null when they have not rated).
func (h *StoresHandler) List(ctx *gin.Context) {
	filter := store.ListStoresFilter{
		Sort: ctx.Query("sort"),
	}

	if v := ctx.Query("name"); v != "" {
		filter.Name = &v
	}
	if v := ctx.Query("address"); v != "" {
		filter.Address = &v
	}

	var viewerID *string

	if id, ok := middlewares.UserIDFromContext(ctx); ok && id != "" {
		viewerID = &id
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	list, err := h.stores.ListWithRatings(cctx, filter, viewerID)

	if err != nil {
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not list stores", nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"stores": list})
}

func (h *StoresHandler) Create(ctx *gin.Context) {
	var req store.CreateStoreRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	s, err := h.writer.Create(cctx, req)

	if err != nil {
		if errors.Is(err, store.ErrOwnerNotFound) {
			RespondBadRequest(ctx, "No Store Owner account matches ownerEmail", gin.H{"field": "ownerEmail"})
			return
		}
		if errors.Is(err, store.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Store email is already in use.")
			return
		}
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not create store", nil)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"store": s})
}

// Rate submits or overwrites the caller's rating for a store. The write is
// a single upsert, so two racing submissions from the same user can never
// produce two rows.
func (h *StoresHandler) Rate(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	storeID := ctx.Param("id")

	var req rating.SubmitRequest

	if !BindJSON(ctx, &req) {
		h.countRating("rejected")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rt, created, err := h.ratings.Upsert(cctx, userID, storeID, *req.Rating)

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.countRating("rejected")
			RespondNotFound(ctx, "Store not found")
			return
		}
		if errors.Is(err, user.ErrNotFound) {
			h.countRating("rejected")
			RespondUnAuthorized(ctx, "unauthorized", "Unknown user")
			return
		}
		if errors.Is(err, rating.ErrInvalidValue) {
			h.countRating("rejected")
			RespondBadRequest(ctx, rating.ErrInvalidValue.Error(), gin.H{"field": "rating"})
			return
		}
		h.countRating("rejected")
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not submit rating", nil)
		return
	}

	if created {
		h.countRating("created")
		h.enqueueRatingReceived(cctx, ctx, rt)
	} else {
		h.countRating("updated")
	}

	average, count, err := h.ratings.AverageForStore(cctx, storeID)

	if err != nil {
		// the write succeeded; annotation failure should not mask that
		average, count = float64(rt.Value), 1
	}

	status := http.StatusOK

	if created {
		status = http.StatusCreated
	}

	ctx.JSON(status, gin.H{
		"rating":        rt,
		"created":       created,
		"averageRating": average,
		"ratingCount":   count,
	})
}

// MyStats is the owner dashboard. The store is located through the caller's
// identity; there is no way to ask for another owner's numbers.
func (h *StoresHandler) MyStats(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	stats, err := h.stores.OwnerStats(cctx, userID)

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondNotFound(ctx, "No store is assigned to this account")
			return
		}
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not load store stats", nil)
		return
	}

	ctx.JSON(http.StatusOK, stats)
}

func (h *StoresHandler) AdminStats(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	stats, err := h.stores.AdminStats(cctx)

	if err != nil {
		RespondError(ctx, http.StatusInternalServerError, "storage_error", "Could not load dashboard stats", nil)
		return
	}

	ctx.JSON(http.StatusOK, stats)
}

func (h *StoresHandler) countRating(outcome string) {
	if h.prom != nil {
		h.prom.RatingsSubmitted.WithLabelValues(outcome).Inc()
	}
}

// enqueueRatingReceived only fires for brand new ratings; overwrites stay
// quiet so an owner is not re-notified every time someone changes their
// mind.
func (h *StoresHandler) enqueueRatingReceived(ctx context.Context, ginCtx *gin.Context, rt rating.Rating) {
	if h.queue == nil {
		return
	}

	reqID := ""

	if v, ok := ginCtx.Get(middlewares.CtxRequestID); ok {
		if s, ok := v.(string); ok {
			reqID = s
		}
	}

	payload, err := jobs.EncodePayload(jobs.JobRatingReceived, jobs.RatingReceivedPayload{
		RatingID:    rt.ID,
		StoreID:     rt.StoreID,
		RaterID:     rt.UserID,
		RequestedAt: time.Now().UTC(),
		RequestID:   reqID,
	})

	if err != nil {
		return
	}

	_, _ = h.queue.Create(ctx, job.CreateRequest{
		Type:    string(jobs.JobRatingReceived),
		Payload: payload,
	})
}
