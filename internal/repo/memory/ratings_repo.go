package memory

import (
	"context"
	"time"

	"github.com/geocoder89/ratehub/internal/domain/rating"
	"github.com/geocoder89/ratehub/internal/domain/store"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/google/uuid"
)

type RatingsRepo struct {
	db *DB
}

// Upsert matches the SQL ON CONFLICT behaviour: one row per (user, store),
// resubmission overwrites in place and reports created=false.
func (r *RatingsRepo) Upsert(_ context.Context, userID, storeID string, value int) (rating.Rating, bool, error) {
	if !rating.ValidValue(value) {
		return rating.Rating{}, false, rating.ErrInvalidValue
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[userID]; !ok {
		return rating.Rating{}, false, user.ErrNotFound
	}
	if _, ok := r.db.stores[storeID]; !ok {
		return rating.Rating{}, false, store.ErrNotFound
	}

	now := time.Now().UTC()
	key := ratingKey(userID, storeID)

	if existing, ok := r.db.ratings[key]; ok {
		existing.Value = value
		existing.UpdatedAt = now
		r.db.ratings[key] = existing
		return existing, false, nil
	}

	rt := rating.Rating{
		ID:        uuid.NewString(),
		UserID:    userID,
		StoreID:   storeID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.db.ratings[key] = rt
	return rt, true, nil
}

func (r *RatingsRepo) AverageForStore(_ context.Context, storeID string) (float64, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	sum, count := 0, 0

	for _, rt := range r.db.ratings {
		if rt.StoreID == storeID {
			sum += rt.Value
			count++
		}
	}

	if count == 0 {
		return 0, 0, nil
	}

	return float64(sum) / float64(count), count, nil
}

func (r *RatingsRepo) ValueFor(_ context.Context, userID, storeID string) (*int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rt, ok := r.db.ratings[ratingKey(userID, storeID)]

	if !ok {
		return nil, nil
	}

	v := rt.Value
	return &v, nil
}

func (r *RatingsRepo) Count(_ context.Context) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return len(r.db.ratings), nil
}

func (r *RatingsRepo) NotificationDetail(_ context.Context, ratingID string) (rating.NotificationDetail, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, rt := range r.db.ratings {
		if rt.ID != ratingID {
			continue
		}

		d := rating.NotificationDetail{
			RatingID: rt.ID,
			Value:    rt.Value,
			StoreID:  rt.StoreID,
		}

		if s, ok := r.db.stores[rt.StoreID]; ok {
			d.StoreName = s.Name

			if owner, ok := r.db.users[s.OwnerID]; ok {
				d.OwnerEmail = owner.Email
				d.OwnerName = owner.Name
			}
		}

		if rater, ok := r.db.users[rt.UserID]; ok {
			d.RaterName = rater.Name
		}

		return d, nil
	}

	return rating.NotificationDetail{}, rating.ErrNotFound
}
