package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/ratehub/internal/auth"
	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/db"
	"github.com/geocoder89/ratehub/internal/domain/store"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	apphttp "github.com/geocoder89/ratehub/internal/http"
)

// These tests need a real database; point TEST_DB_DSN at a scratch
// postgres to run them.

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		AdminEmail:          "admin@example.com",
		AdminPassword:       "Adm1nSecret!",
		AdminName:           "Test Admin",
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
	}
}

func setupDBRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping database integration test")
	}

	gin.SetMode(gin.TestMode)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)

	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}

	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE notification_deliveries, jobs, ratings, stores, users CASCADE`)

	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	cfg := testConfig()

	if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		t.Fatalf("admin seed failed: %v", err)
	}

	registry := prometheus.NewRegistry()

	router := apphttp.NewRouter(apphttp.Deps{
		Cfg:      cfg,
		Log:      observability.NewLogger("test"),
		Pool:     pool,
		Prom:     observability.NewProm(registry),
		Registry: registry,
		JWT:      auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute),
	})

	return router, pool
}

func request(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, router http.Handler, email, pw string) string {
	t.Helper()

	w := request(router, http.MethodPost, "/auth/login", `{"email": "`+email+`", "password": "`+pw+`"}`, "")

	if w.Code != http.StatusOK {
		t.Fatalf("login failed for %s: %d %s", email, w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.AccessToken == "" {
		t.Fatalf("no token in login response: %s", w.Body.String())
	}
	return resp.AccessToken
}

func TestRatingUpsertAgainstDB(t *testing.T) {
	router, pool := setupDBRouter(t)

	cfg := testConfig()

	adminToken := loginAs(t, router, cfg.AdminEmail, cfg.AdminPassword)

	w := request(router, http.MethodPost, "/users",
		`{"name": "Bob Smith", "email": "bob@example.com", "password": "Sup3rSecret!", "role": "Store Owner"}`,
		adminToken)

	if w.Code != http.StatusCreated {
		t.Fatalf("owner creation failed: %d %s", w.Code, w.Body.String())
	}

	w = request(router, http.MethodPost, "/stores",
		`{"name": "Corner Shop", "email": "shop@example.com", "address": "1 Market Sq", "ownerEmail": "bob@example.com"}`,
		adminToken)

	if w.Code != http.StatusCreated {
		t.Fatalf("store creation failed: %d %s", w.Code, w.Body.String())
	}

	var createResp struct {
		Store store.Store `json:"store"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &createResp); err != nil {
		t.Fatalf("bad store response: %v", err)
	}

	storeID := createResp.Store.ID

	if w := request(router, http.MethodPost, "/auth/register",
		`{"name": "Jane Smith", "email": "jane@example.com", "password": "Sup3rSecret!"}`, ""); w.Code != http.StatusCreated {
		t.Fatalf("registration failed: %d %s", w.Code, w.Body.String())
	}

	janeToken := loginAs(t, router, "jane@example.com", "Sup3rSecret!")

	if w := request(router, http.MethodPost, "/stores/"+storeID+"/rate", `{"rating": 4}`, janeToken); w.Code != http.StatusCreated {
		t.Fatalf("first rating failed: %d %s", w.Code, w.Body.String())
	}

	w = request(router, http.MethodPost, "/stores/"+storeID+"/rate", `{"rating": 2}`, janeToken)

	if w.Code != http.StatusOK {
		t.Fatalf("resubmission should be 200, got %d %s", w.Code, w.Body.String())
	}

	// the unique (user_id, store_id) pair means exactly one row survives
	var rows int
	var value int

	err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*), MIN(rating) FROM ratings WHERE store_id = $1`, storeID,
	).Scan(&rows, &value)

	if err != nil {
		t.Fatalf("rating lookup failed: %v", err)
	}

	if rows != 1 || value != 2 {
		t.Fatalf("got %d rows with value %d, want 1 row with value 2", rows, value)
	}

	// a job was queued for the first (created) submission only
	var jobCount int

	err = pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM jobs WHERE type = 'rating.received'`,
	).Scan(&jobCount)

	if err != nil {
		t.Fatalf("job lookup failed: %v", err)
	}

	if jobCount != 1 {
		t.Fatalf("got %d rating.received jobs, want 1", jobCount)
	}
}
