package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *UsersRepo) Create(ctx context.Context, name, email, passwordHash, address string, role user.Role) (user.User, error) {
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

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, address, role, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Address, string(u.Role), u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, name, email, password_hash, address, role, created_at, updated_at
			 FROM users
			 WHERE email = $1`,
			email,
		).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Address, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, name, email, password_hash, address, role, created_at, updated_at
			 FROM users
			 WHERE id = $1`,
			id,
		).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Address, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	var tag pgconn.CommandTag

	err := r.observe("users.update_password", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, passwordHash,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

var userSortColumns = map[string]string{
	"name":       "u.name",
	"email":      "u.email",
	"address":    "u.address",
	"role":       "u.role",
	"created_at": "u.created_at",
}

// listSelect carries the owner annotation: for Store Owner rows the first
// store they own (creation order, mirroring the product's findOne
// behaviour when an owner has several stores) and that store's current
// average rating. The average is computed inside this query, never stored.
const listSelect = `
	SELECT u.id, u.name, u.email, u.address, u.role, u.created_at, u.updated_at,
	       st.name,
	       COALESCE(avg_r.average, 0)
	FROM users u
	LEFT JOIN LATERAL (
		SELECT s.id, s.name
		FROM stores s
		WHERE s.owner_id = u.id
		ORDER BY s.created_at ASC, s.id ASC
		LIMIT 1
	) st ON true
	LEFT JOIN LATERAL (
		SELECT AVG(r.rating)::float8 AS average
		FROM ratings r
		WHERE r.store_id = st.id
	) avg_r ON true
`

func (r *UsersRepo) List(ctx context.Context, filter user.ListUsersFilter) ([]user.WithStats, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if filter.Name != nil {
		conds = append(conds, fmt.Sprintf("u.name ILIKE '%%' || $%d || '%%'", argsPosition))
		args = append(args, *filter.Name)
		argsPosition++
	}

	if filter.Email != nil {
		conds = append(conds, fmt.Sprintf("u.email ILIKE '%%' || $%d || '%%'", argsPosition))
		args = append(args, *filter.Email)
		argsPosition++
	}

	if filter.Address != nil {
		conds = append(conds, fmt.Sprintf("u.address ILIKE '%%' || $%d || '%%'", argsPosition))
		args = append(args, *filter.Address)
		argsPosition++
	}

	if filter.Role != nil {
		conds = append(conds, fmt.Sprintf("u.role = $%d", argsPosition))
		args = append(args, string(*filter.Role))
		argsPosition++
	}

	query := listSelect

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY " + orderByClause(filter.Sort, userSortColumns, "u")

	var rows pgx.Rows
	var err error

	err = r.observe("users.list", func() error {
		rows, err = r.pool.Query(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]user.WithStats, 0)

	for rows.Next() {
		var u user.WithStats
		var storeName *string
		var average float64

		err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.Address, &u.Role, &u.CreatedAt, &u.UpdatedAt, &storeName, &average)

		if err != nil {
			return nil, err
		}

		if u.Role == user.RoleOwner && storeName != nil {
			u.Owner = &user.OwnerStats{StoreName: *storeName, AverageRating: average}
		}

		out = append(out, u)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *UsersRepo) GetWithStats(ctx context.Context, id string) (user.WithStats, error) {
	query := listSelect + " WHERE u.id = $1"

	var u user.WithStats
	var storeName *string
	var average float64

	err := r.observe("users.get_with_stats", func() error {
		return r.pool.QueryRow(ctx, query, id).Scan(
			&u.ID, &u.Name, &u.Email, &u.Address, &u.Role, &u.CreatedAt, &u.UpdatedAt, &storeName, &average,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.WithStats{}, user.ErrNotFound
		}
		return user.WithStats{}, err
	}

	if u.Role == user.RoleOwner && storeName != nil {
		u.Owner = &user.OwnerStats{StoreName: *storeName, AverageRating: average}
	}

	return u, nil
}
