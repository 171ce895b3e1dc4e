package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/http/handlers"
	"github.com/geocoder89/ratehub/internal/jobs"
	"github.com/google/uuid"
)

type fakeUserLister struct {
	listFn         func(ctx context.Context, filter user.ListUsersFilter) ([]user.WithStats, error)
	getWithStatsFn func(ctx context.Context, id string) (user.WithStats, error)
}

func (f *fakeUserLister) List(ctx context.Context, filter user.ListUsersFilter) ([]user.WithStats, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []user.WithStats{}, nil
}

func (f *fakeUserLister) GetWithStats(ctx context.Context, id string) (user.WithStats, error) {
	if f.getWithStatsFn != nil {
		return f.getWithStatsFn(ctx, id)
	}
	return user.WithStats{}, user.ErrNotFound
}

func TestListUsersHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		url            string
		listerSetUp    func(*fakeUserLister)
		wantStatusCode int
	}{
		{
			name: "success_no_filters",
			url:  "/users",
			listerSetUp: func(f *fakeUserLister) {
				f.listFn = func(ctx context.Context, filter user.ListUsersFilter) ([]user.WithStats, error) {
					if filter.Name != nil || filter.Email != nil || filter.Role != nil {
						t.Fatalf("expected empty filter, got %+v", filter)
					}
					return []user.WithStats{}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "filters_forwarded",
			url:  "/users?name=smith&role=Store%20Owner&sort=-email",
			listerSetUp: func(f *fakeUserLister) {
				f.listFn = func(ctx context.Context, filter user.ListUsersFilter) ([]user.WithStats, error) {
					if filter.Name == nil || *filter.Name != "smith" {
						t.Fatalf("name filter not forwarded: %+v", filter)
					}
					if filter.Role == nil || *filter.Role != user.RoleOwner {
						t.Fatalf("role filter not forwarded: %+v", filter)
					}
					if filter.Sort != "-email" {
						t.Fatalf("sort not forwarded: %q", filter.Sort)
					}

					owner := user.WithStats{
						User: user.User{
							ID:        uuid.NewString(),
							Name:      "Bob Smith",
							Email:     "bob@example.com",
							Role:      user.RoleOwner,
							CreatedAt: now,
							UpdatedAt: now,
						},
						Owner: &user.OwnerStats{StoreName: "Bob's Shop", AverageRating: 4.5},
					}
					return []user.WithStats{owner}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "unknown_role_filter",
			url:            "/users?role=superuser",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeUserLister{}

			if tt.listerSetUp != nil {
				tt.listerSetUp(lister)
			}

			h := handlers.NewUsersHandler(lister, &fakeUsersRepo{}, &fakeQueue{}, config.Config{Env: "test"})

			r := setupRouter(http.MethodGet, "/users", h.List)

			w := doJSON(r, http.MethodGet, tt.url, "", nil)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestCreateUserHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantJobTypes   []string
	}{
		{
			name:           "create_owner_account",
			body:           `{"name": "Bob Smith", "email": "bob@example.com", "password": "` + testPassword + `", "address": "2 High St", "role": "Store Owner"}`,
			wantStatusCode: http.StatusCreated,
			wantJobTypes:   []string{string(jobs.JobWelcomeUser)},
		},
		{
			name:           "create_admin_account",
			body:           `{"name": "Root Admin", "email": "root@example.com", "password": "` + testPassword + `", "role": "System Administrator"}`,
			wantStatusCode: http.StatusCreated,
			wantJobTypes:   []string{string(jobs.JobWelcomeUser)},
		},
		{
			name:           "rejects_unknown_role",
			body:           `{"name": "Bob Smith", "email": "bob@example.com", "password": "` + testPassword + `", "role": "Superuser"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "rejects_weak_password",
			body:           `{"name": "Bob Smith", "email": "bob@example.com", "password": "password", "role": "Normal User"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "email_taken",
			body: `{"name": "Bob Smith", "email": "bob@example.com", "password": "` + testPassword + `", "role": "Normal User"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, name, email, passwordHash, address string, role user.Role) (user.User, error) {
					return user.User{}, user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			queue := &fakeQueue{}

			h := handlers.NewUsersHandler(&fakeUserLister{}, repo, queue, config.Config{Env: "test"})

			r := setupRouter(http.MethodPost, "/users", h.Create)

			w := doJSON(r, http.MethodPost, "/users", tt.body, nil)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			got := queue.types()

			if len(got) != len(tt.wantJobTypes) {
				t.Fatalf("enqueued jobs = %v, want %v", got, tt.wantJobTypes)
			}
		})
	}
}

func TestGetUserByIDHandler(t *testing.T) {
	known := uuid.NewString()

	lister := &fakeUserLister{
		getWithStatsFn: func(ctx context.Context, id string) (user.WithStats, error) {
			if id == known {
				return user.WithStats{User: user.User{ID: known, Role: user.RoleNormal}}, nil
			}
			return user.WithStats{}, user.ErrNotFound
		},
	}

	h := handlers.NewUsersHandler(lister, &fakeUsersRepo{}, &fakeQueue{}, config.Config{Env: "test"})
	r := setupRouter(http.MethodGet, "/users/:id", h.GetByID)

	w := doJSON(r, http.MethodGet, "/users/"+known, "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/users/"+uuid.NewString(), "", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}
