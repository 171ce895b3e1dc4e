package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/google/uuid"
)

type UsersRepo struct {
	db *DB
}

func (r *UsersRepo) Create(_ context.Context, name, email, passwordHash, address string, role user.Role) (user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return user.User{}, user.ErrEmailTaken
		}
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Address:      address,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.db.users[u.ID] = u
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]

	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.db.users[id] = u
	return nil
}

var userSortFields = map[string]bool{
	"name": true, "email": true, "address": true, "role": true, "created_at": true,
}

func (r *UsersRepo) List(_ context.Context, filter user.ListUsersFilter) ([]user.WithStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]user.WithStats, 0)

	for _, u := range r.db.users {
		if filter.Name != nil && !containsFold(u.Name, *filter.Name) {
			continue
		}
		if filter.Email != nil && !containsFold(u.Email, *filter.Email) {
			continue
		}
		if filter.Address != nil && !containsFold(u.Address, *filter.Address) {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}

		out = append(out, r.annotateLocked(u))
	}

	field, desc := parseSort(filter.Sort, userSortFields)

	// tie-break first, then a stable pass on the sort field
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	sort.SliceStable(out, func(i, j int) bool {
		a, b := userSortValue(out[i], field), userSortValue(out[j], field)

		if desc {
			return a > b
		}
		return a < b
	})

	return out, nil
}

func (r *UsersRepo) GetWithStats(_ context.Context, id string) (user.WithStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]

	if !ok {
		return user.WithStats{}, user.ErrNotFound
	}

	return r.annotateLocked(u), nil
}

// annotateLocked attaches the owner's first store and its live average.
// Callers hold at least the read lock.
func (r *UsersRepo) annotateLocked(u user.User) user.WithStats {
	out := user.WithStats{User: u}

	if u.Role != user.RoleOwner {
		return out
	}

	s, ok := firstStoreByOwnerLocked(r.db, u.ID)

	if !ok {
		return out
	}

	sum, count := 0, 0

	for _, rt := range r.db.ratings {
		if rt.StoreID == s.ID {
			sum += rt.Value
			count++
		}
	}

	avg := 0.0

	if count > 0 {
		avg = float64(sum) / float64(count)
	}

	out.Owner = &user.OwnerStats{StoreName: s.Name, AverageRating: avg}
	return out
}

func userSortValue(u user.WithStats, field string) string {
	switch field {
	case "email":
		return strings.ToLower(u.Email)
	case "address":
		return strings.ToLower(u.Address)
	case "role":
		return string(u.Role)
	case "created_at":
		return u.CreatedAt.Format(time.RFC3339Nano)
	default:
		return strings.ToLower(u.Name)
	}
}
