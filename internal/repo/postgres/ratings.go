package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/ratehub/internal/domain/rating"
	"github.com/geocoder89/ratehub/internal/domain/store"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RatingsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRatingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RatingsRepo {
	return &RatingsRepo{pool: pool, prom: prom}
}

func (r *RatingsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Upsert submits or overwrites the caller's rating for a store in a single
// statement. The composite unique index on (user_id, store_id) is what
// keeps two concurrent submissions from racing into duplicate rows: the
// loser of the race lands in the DO UPDATE arm instead of surfacing a
// uniqueness error. Returns created=true when a new row was inserted
// (xmax = 0 only holds for freshly inserted tuples).
func (r *RatingsRepo) Upsert(ctx context.Context, userID, storeID string, value int) (rating.Rating, bool, error) {
	if !rating.ValidValue(value) {
		return rating.Rating{}, false, rating.ErrInvalidValue
	}

	var rt rating.Rating
	var created bool

	err := r.observe("ratings.upsert", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO ratings (id, user_id, store_id, rating, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW())
			 ON CONFLICT (user_id, store_id)
			 DO UPDATE SET rating = EXCLUDED.rating, updated_at = NOW()
			 RETURNING id, user_id, store_id, rating, created_at, updated_at, (xmax = 0) AS inserted`,
			uuid.NewString(), userID, storeID, value,
		).Scan(&rt.ID, &rt.UserID, &rt.StoreID, &rt.Value, &rt.CreatedAt, &rt.UpdatedAt, &created)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// FK violation: the referenced store or user does not exist
			if pgErr.ConstraintName == "ratings_user_id_fkey" {
				return rating.Rating{}, false, user.ErrNotFound
			}
			return rating.Rating{}, false, store.ErrNotFound
		}
		return rating.Rating{}, false, err
	}

	return rt, created, nil
}

// AverageForStore recomputes the mean on every call; an empty ledger is
// exactly 0, never NaN or NULL.
func (r *RatingsRepo) AverageForStore(ctx context.Context, storeID string) (float64, int, error) {
	var average float64
	var count int

	err := r.observe("ratings.average_for_store", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
			 FROM ratings
			 WHERE store_id = $1`,
			storeID,
		).Scan(&average, &count)
	})

	if err != nil {
		return 0, 0, err
	}

	return average, count, nil
}

// ValueFor returns the caller's rating for a store, or nil when they have
// not rated it. Nil and 0 are different things: 0 is not a valid rating.
func (r *RatingsRepo) ValueFor(ctx context.Context, userID, storeID string) (*int, error) {
	var v int

	err := r.observe("ratings.value_for", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT rating FROM ratings WHERE user_id = $1 AND store_id = $2`,
			userID, storeID,
		).Scan(&v)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &v, nil
}

// NotificationDetail joins a rating to its store, the store's owner and the
// rater, so the worker can address an owner notification without extra
// round trips.
func (r *RatingsRepo) NotificationDetail(ctx context.Context, ratingID string) (rating.NotificationDetail, error) {
	var d rating.NotificationDetail

	err := r.observe("ratings.notification_detail", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT rt.id, rt.rating, s.id, s.name, o.email, o.name, u.name
			 FROM ratings rt
			 JOIN stores s ON s.id = rt.store_id
			 JOIN users o ON o.id = s.owner_id
			 JOIN users u ON u.id = rt.user_id
			 WHERE rt.id = $1`,
			ratingID,
		).Scan(&d.RatingID, &d.Value, &d.StoreID, &d.StoreName, &d.OwnerEmail, &d.OwnerName, &d.RaterName)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rating.NotificationDetail{}, rating.ErrNotFound
		}
		return rating.NotificationDetail{}, err
	}

	return d, nil
}

func (r *RatingsRepo) Count(ctx context.Context) (int, error) {
	var total int

	err := r.observe("ratings.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ratings`).Scan(&total)
	})

	return total, err
}
