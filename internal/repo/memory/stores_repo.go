package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/geocoder89/ratehub/internal/domain/store"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/google/uuid"
)

type StoresRepo struct {
	db *DB
}

func (r *StoresRepo) Create(_ context.Context, req store.CreateStoreRequest) (store.Store, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var ownerID string

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, req.OwnerEmail) && u.Role == user.RoleOwner {
			ownerID = u.ID
			break
		}
	}

	if ownerID == "" {
		return store.Store{}, store.ErrOwnerNotFound
	}

	for _, s := range r.db.stores {
		if strings.EqualFold(s.Email, req.Email) {
			return store.Store{}, store.ErrEmailTaken
		}
	}

	now := time.Now().UTC()

	s := store.Store{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Address:   req.Address,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.db.stores[s.ID] = s
	return s, nil
}

var storeSortFields = map[string]bool{
	"name": true, "email": true, "address": true, "created_at": true,
}

func (r *StoresRepo) ListWithRatings(_ context.Context, filter store.ListStoresFilter, viewerID *string) ([]store.WithRatings, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]store.WithRatings, 0)

	for _, s := range r.db.stores {
		if filter.Name != nil && !containsFold(s.Name, *filter.Name) {
			continue
		}
		if filter.Address != nil && !containsFold(s.Address, *filter.Address) {
			continue
		}

		row := store.WithRatings{Store: s}

		sum, count := 0, 0

		for _, rt := range r.db.ratings {
			if rt.StoreID != s.ID {
				continue
			}

			sum += rt.Value
			count++

			if viewerID != nil && rt.UserID == *viewerID {
				v := rt.Value
				row.UserRating = &v
			}
		}

		if count > 0 {
			row.AverageRating = float64(sum) / float64(count)
		}

		out = append(out, row)
	}

	field, desc := parseSort(filter.Sort, storeSortFields)

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	sort.SliceStable(out, func(i, j int) bool {
		a, b := storeSortValue(out[i], field), storeSortValue(out[j], field)

		if desc {
			return a > b
		}
		return a < b
	})

	return out, nil
}

func (r *StoresRepo) GetByID(_ context.Context, id string) (store.Store, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.stores[id]

	if !ok {
		return store.Store{}, store.ErrNotFound
	}
	return s, nil
}

func (r *StoresRepo) GetByOwner(_ context.Context, ownerID string) (store.Store, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := firstStoreByOwnerLocked(r.db, ownerID)

	if !ok {
		return store.Store{}, store.ErrNotFound
	}
	return s, nil
}

func (r *StoresRepo) OwnerStats(_ context.Context, ownerID string) (store.OwnerStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := firstStoreByOwnerLocked(r.db, ownerID)

	if !ok {
		return store.OwnerStats{}, store.ErrNotFound
	}

	stats := store.OwnerStats{
		StoreID:   s.ID,
		StoreName: s.Name,
		Ratings:   make([]store.RaterDetail, 0),
	}

	sum := 0

	for _, rt := range r.db.ratings {
		if rt.StoreID != s.ID {
			continue
		}

		d := store.RaterDetail{
			Rating:  rt.Value,
			RatedAt: rt.UpdatedAt,
		}

		if u, ok := r.db.users[rt.UserID]; ok {
			d.UserName = u.Name
			d.UserEmail = u.Email
			d.UserAddress = u.Address
		}

		sum += rt.Value
		stats.Ratings = append(stats.Ratings, d)
	}

	sort.Slice(stats.Ratings, func(i, j int) bool {
		return stats.Ratings[i].RatedAt.Before(stats.Ratings[j].RatedAt)
	})

	if len(stats.Ratings) > 0 {
		stats.AverageRating = float64(sum) / float64(len(stats.Ratings))
	}

	return stats, nil
}

func (r *StoresRepo) AdminStats(_ context.Context) (store.AdminStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return store.AdminStats{
		TotalUsers:   len(r.db.users),
		TotalStores:  len(r.db.stores),
		TotalRatings: len(r.db.ratings),
	}, nil
}

// firstStoreByOwnerLocked picks the earliest store assigned to ownerID,
// matching the SQL layer's ORDER BY created_at, id LIMIT 1.
func firstStoreByOwnerLocked(db *DB, ownerID string) (store.Store, bool) {
	var best store.Store
	found := false

	for _, s := range db.stores {
		if s.OwnerID != ownerID {
			continue
		}

		if !found ||
			s.CreatedAt.Before(best.CreatedAt) ||
			(s.CreatedAt.Equal(best.CreatedAt) && s.ID < best.ID) {
			best = s
			found = true
		}
	}

	return best, found
}

func storeSortValue(s store.WithRatings, field string) string {
	switch field {
	case "email":
		return strings.ToLower(s.Email)
	case "address":
		return strings.ToLower(s.Address)
	case "created_at":
		return s.CreatedAt.Format(time.RFC3339Nano)
	default:
		return strings.ToLower(s.Name)
	}
}
