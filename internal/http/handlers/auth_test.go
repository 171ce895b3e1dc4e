package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/ratehub/internal/auth"
	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/domain/job"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/http/handlers"
	"github.com/geocoder89/ratehub/internal/http/middlewares"
	"github.com/geocoder89/ratehub/internal/jobs"
	"github.com/geocoder89/ratehub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "Sup3rSecret!"

func testJWT() *auth.Manager {
	return auth.NewManager("test-secret-key", time.Hour)
}

// Fake repository implementation of the handlers user interfaces

type fakeUsersRepo struct {
	getByEmailFn     func(ctx context.Context, email string) (user.User, error)
	getByIDFn        func(ctx context.Context, id string) (user.User, error)
	createFn         func(ctx context.Context, name, email, passwordHash, address string, role user.Role) (user.User, error)
	updatePasswordFn func(ctx context.Context, id, passwordHash string) error
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) Create(ctx context.Context, name, email, passwordHash, address string, role user.Role) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, name, email, passwordHash, address, role)
	}

	now := time.Now().UTC()

	return user.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Address:      address,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if f.updatePasswordFn != nil {
		return f.updatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

// fakeQueue records enqueued jobs so tests can assert on them.

type fakeQueue struct {
	mu      sync.Mutex
	created []job.CreateRequest
	err     error
}

func (f *fakeQueue) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return job.Job{}, f.err
	}

	f.created = append(f.created, req)
	return job.New(req), nil
}

func (f *fakeQueue) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.created))
	for _, c := range f.created {
		out = append(out, c.Type)
	}
	return out
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h...)

	return r
}

func doJSON(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignUpHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantJobTypes   []string
	}{
		{
			name:           "success",
			body:           `{"name": "Jane Smith", "email": "jane@example.com", "password": "` + testPassword + `", "address": "12 Main St"}`,
			wantStatusCode: http.StatusCreated,
			wantJobTypes:   []string{string(jobs.JobWelcomeUser)},
		},
		{
			name:           "weak_password_no_symbol",
			body:           `{"name": "Jane Smith", "email": "jane@example.com", "password": "Password1234"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "weak_password_too_short",
			body:           `{"name": "Jane Smith", "email": "jane@example.com", "password": "Ab!1"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing_email",
			body:           `{"name": "Jane Smith", "password": "` + testPassword + `"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "email_taken",
			body: `{"name": "Jane Smith", "email": "jane@example.com", "password": "` + testPassword + `"}`,
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

			h := handlers.NewAuthHandler(repo, repo, testJWT(), queue, config.Config{Env: "test"})

			r := setupRouter(http.MethodPost, "/auth/register", h.SignUp)

			w := doJSON(r, http.MethodPost, "/auth/register", tt.body, nil)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			got := queue.types()

			if len(got) != len(tt.wantJobTypes) {
				t.Fatalf("enqueued jobs = %v, want %v", got, tt.wantJobTypes)
			}

			for i := range got {
				if got[i] != tt.wantJobTypes[i] {
					t.Fatalf("enqueued jobs = %v, want %v", got, tt.wantJobTypes)
				}
			}

			// a successful signup always lands as a Normal User
			if tt.wantStatusCode == http.StatusCreated {
				var resp struct {
					AccessToken string    `json:"accessToken"`
					User        user.User `json:"user"`
				}

				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("could not parse response: %v", err)
				}

				if resp.AccessToken == "" {
					t.Fatalf("expected access token in response")
				}

				if resp.User.Role != user.RoleNormal {
					t.Fatalf("signup role = %q, want %q", resp.User.Role, user.RoleNormal)
				}
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	hash, err := security.HashPassword(testPassword)

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	knownUser := user.User{
		ID:           uuid.NewString(),
		Name:         "Jane Smith",
		Email:        "jane@example.com",
		PasswordHash: hash,
		Role:         user.RoleNormal,
	}

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"email": "jane@example.com", "password": "` + testPassword + `"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return knownUser, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "wrong_password",
			body: `{"email": "jane@example.com", "password": "Wr0ngPass!"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return knownUser, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unknown_email",
			body:           `{"email": "nobody@example.com", "password": "` + testPassword + `"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid_body",
			body:           `{"email": "not-an-email"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewAuthHandler(repo, repo, testJWT(), &fakeQueue{}, config.Config{Env: "test"})

			r := setupRouter(http.MethodPost, "/auth/login", h.Login)

			w := doJSON(r, http.MethodPost, "/auth/login", tt.body, nil)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestUpdatePasswordHandler(t *testing.T) {
	hash, err := security.HashPassword(testPassword)

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	jwtManager := testJWT()

	self := user.User{
		ID:           uuid.NewString(),
		Email:        "jane@example.com",
		PasswordHash: hash,
		Role:         user.RoleNormal,
	}

	token, err := jwtManager.GenerateAccessToken(self.ID, self.Email, string(self.Role))

	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	tests := []struct {
		name           string
		body           string
		token          string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"currentPassword": "` + testPassword + `", "newPassword": "N3wSecret!pw"}`,
			token:          token,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "wrong_current_password",
			body:           `{"currentPassword": "Wr0ngPass!", "newPassword": "N3wSecret!pw"}`,
			token:          token,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "weak_new_password",
			body:           `{"currentPassword": "` + testPassword + `", "newPassword": "weakpw"}`,
			token:          token,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing_token",
			body:           `{"currentPassword": "` + testPassword + `", "newPassword": "N3wSecret!pw"}`,
			token:          "",
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{
				getByIDFn: func(ctx context.Context, id string) (user.User, error) {
					if id != self.ID {
						return user.User{}, user.ErrNotFound
					}
					return self, nil
				},
				updatePasswordFn: func(ctx context.Context, id, passwordHash string) error {
					if id != self.ID {
						return errors.New("unexpected user id")
					}
					return nil
				},
			}

			h := handlers.NewAuthHandler(repo, repo, jwtManager, &fakeQueue{}, config.Config{Env: "test"})
			authMw := middlewares.NewAuthMiddleware(jwtManager)

			r := setupRouter(http.MethodPut, "/auth/password", authMw.RequireAuth(), h.UpdatePassword)

			headers := map[string]string{}

			if tt.token != "" {
				headers["Authorization"] = "Bearer " + tt.token
			}

			w := doJSON(r, http.MethodPut, "/auth/password", tt.body, headers)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
