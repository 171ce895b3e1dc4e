package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/ratehub/internal/domain/store"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StoresRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewStoresRepo(pool *pgxpool.Pool, prom *observability.Prom) *StoresRepo {
	return &StoresRepo{pool: pool, prom: prom}
}

func (r *StoresRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Create resolves the owner email to an existing Store Owner user before
// inserting. There is deliberately no one-store-per-owner constraint; an
// administrator may assign the same owner to several stores.
func (r *StoresRepo) Create(ctx context.Context, req store.CreateStoreRequest) (store.Store, error) {
	var ownerID string

	err := r.observe("stores.resolve_owner", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id FROM users WHERE email = $1 AND role = $2`,
			req.OwnerEmail, string(user.RoleOwner),
		).Scan(&ownerID)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Store{}, store.ErrOwnerNotFound
		}
		return store.Store{}, err
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

	err = r.observe("stores.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO stores (id, name, email, address, owner_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			s.ID, s.Name, s.Email, s.Address, s.OwnerID, s.CreatedAt, s.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return store.Store{}, store.ErrEmailTaken
		}
		return store.Store{}, err
	}

	return s, nil
}

var storeSortColumns = map[string]string{
	"name":       "s.name",
	"email":      "s.email",
	"address":    "s.address",
	"created_at": "s.created_at",
}

// ListWithRatings returns the filtered stores annotated with their current
// average rating and, when viewerID is set, that viewer's own rating. Both
// annotations come out of one grouped query so a listing costs one round
// trip and reads a single consistent snapshot, instead of a per-store
// fan-out racing concurrent rating writes.
func (r *StoresRepo) ListWithRatings(ctx context.Context, filter store.ListStoresFilter, viewerID *string) ([]store.WithRatings, error) {
	base := `
	SELECT s.id, s.name, s.email, s.address, s.owner_id, s.created_at, s.updated_at,
	       COALESCE(AVG(r.rating), 0)::float8 AS average_rating,
	       (SELECT r2.rating FROM ratings r2 WHERE r2.store_id = s.id AND r2.user_id = $1) AS user_rating
	FROM stores s
	LEFT JOIN ratings r ON r.store_id = s.id
	`

	conds := []string{}
	args := []interface{}{viewerID}

	argsPosition := 2

	if filter.Name != nil {
		conds = append(conds, fmt.Sprintf("s.name ILIKE '%%' || $%d || '%%'", argsPosition))
		args = append(args, *filter.Name)
		argsPosition++
	}

	if filter.Address != nil {
		conds = append(conds, fmt.Sprintf("s.address ILIKE '%%' || $%d || '%%'", argsPosition))
		args = append(args, *filter.Address)
		argsPosition++
	}

	query := base

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " GROUP BY s.id ORDER BY " + orderByClause(filter.Sort, storeSortColumns, "s")

	var rows pgx.Rows
	var err error

	err = r.observe("stores.list_with_ratings", func() error {
		rows, err = r.pool.Query(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]store.WithRatings, 0)

	for rows.Next() {
		var s store.WithRatings

		err = rows.Scan(
			&s.ID, &s.Name, &s.Email, &s.Address, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt,
			&s.AverageRating, &s.UserRating,
		)

		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *StoresRepo) GetByID(ctx context.Context, id string) (store.Store, error) {
	var s store.Store

	err := r.observe("stores.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, email, address, owner_id, created_at, updated_at
			 FROM stores WHERE id = $1`,
			id,
		).Scan(&s.ID, &s.Name, &s.Email, &s.Address, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Store{}, store.ErrNotFound
		}
		return store.Store{}, err
	}
	return s, nil
}

// GetByOwner returns the store owned by ownerID. When an owner has been
// assigned several stores the earliest one wins, matching the listing
// annotation.
func (r *StoresRepo) GetByOwner(ctx context.Context, ownerID string) (store.Store, error) {
	var s store.Store

	err := r.observe("stores.get_by_owner", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, email, address, owner_id, created_at, updated_at
			 FROM stores
			 WHERE owner_id = $1
			 ORDER BY created_at ASC, id ASC
			 LIMIT 1`,
			ownerID,
		).Scan(&s.ID, &s.Name, &s.Email, &s.Address, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Store{}, store.ErrNotFound
		}
		return store.Store{}, err
	}
	return s, nil
}

// OwnerStats builds the owner dashboard: every rating on the owner's store
// with the rater's profile joined in, plus the average over exactly the
// rows returned. The store is located by its owner reference, never by a
// client supplied store id.
func (r *StoresRepo) OwnerStats(ctx context.Context, ownerID string) (store.OwnerStats, error) {
	s, err := r.GetByOwner(ctx, ownerID)

	if err != nil {
		return store.OwnerStats{}, err
	}

	var rows pgx.Rows

	err = r.observe("stores.owner_stats", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx,
			`SELECT r.rating, r.updated_at, u.name, u.email, u.address
			 FROM ratings r
			 JOIN users u ON u.id = r.user_id
			 WHERE r.store_id = $1
			 ORDER BY r.created_at ASC, r.id ASC`,
			s.ID,
		)
		return qerr
	})

	if err != nil {
		return store.OwnerStats{}, err
	}

	defer rows.Close()

	stats := store.OwnerStats{
		StoreID:   s.ID,
		StoreName: s.Name,
		Ratings:   make([]store.RaterDetail, 0),
	}

	sum := 0

	for rows.Next() {
		var d store.RaterDetail

		if err = rows.Scan(&d.Rating, &d.RatedAt, &d.UserName, &d.UserEmail, &d.UserAddress); err != nil {
			return store.OwnerStats{}, err
		}

		sum += d.Rating
		stats.Ratings = append(stats.Ratings, d)
	}

	if err = rows.Err(); err != nil {
		return store.OwnerStats{}, err
	}

	// average over the rows we actually returned keeps the number and the
	// list consistent with each other
	if len(stats.Ratings) > 0 {
		stats.AverageRating = float64(sum) / float64(len(stats.Ratings))
	}

	return stats, nil
}

func (r *StoresRepo) AdminStats(ctx context.Context) (store.AdminStats, error) {
	var stats store.AdminStats

	err := r.observe("stores.admin_stats", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT
				(SELECT COUNT(*) FROM users),
				(SELECT COUNT(*) FROM stores),
				(SELECT COUNT(*) FROM ratings)`,
		).Scan(&stats.TotalUsers, &stats.TotalStores, &stats.TotalRatings)
	})

	if err != nil {
		return store.AdminStats{}, err
	}

	return stats, nil
}
