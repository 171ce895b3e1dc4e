package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/ratehub/internal/auth"
	"github.com/geocoder89/ratehub/internal/authz"
	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/http/handlers"
	"github.com/geocoder89/ratehub/internal/http/middlewares"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/geocoder89/ratehub/internal/queue/redisclient"
	"github.com/geocoder89/ratehub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodySize = 1 << 20 // 1 MiB is plenty for these payloads

type Deps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Prom     *observability.Prom
	Registry *prometheus.Registry
	JWT      *auth.Manager
	Redis    *redisclient.Client
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodySize))
	r.Use(otelgin.Middleware("ratehub-api"))

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health + metrics

	health := handlers.NewHealthHandler(d.Pool)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	// wire up repositories

	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	storesRepo := postgres.NewStoresRepo(d.Pool, d.Prom)
	ratingsRepo := postgres.NewRatingsRepo(d.Pool, d.Prom)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)

	// wire up handlers

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, d.JWT, jobsRepo, d.Cfg)
	usersHandler := handlers.NewUsersHandler(usersRepo, usersRepo, jobsRepo, d.Cfg)
	storesHandler := handlers.NewStoresHandler(storesRepo, storesRepo, ratingsRepo, jobsRepo, d.Prom, d.Cfg)

	authMw := middlewares.NewAuthMiddleware(d.JWT)

	// login/signup share one budget per client; redis spreads it across
	// replicas when configured
	var limiterStore middlewares.LimiterStore = middlewares.NewMemoryLimiter(10, time.Minute)

	if d.Redis != nil {
		limiterStore = middlewares.NewRedisLimiter(d.Redis.Raw(), 10, time.Minute)
	}

	authLimiter := middlewares.NewRateLimiter(limiterStore)

	// routes

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.SignUp)
		authGroup.POST("/login", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)
		authGroup.GET("/me", authMw.RequireAuth(), authHandler.Me)
		authGroup.PUT("/password",
			authMw.RequireAuth(),
			authMw.RequireAction(authz.ActionChangePassword),
			authHandler.UpdatePassword,
		)
	}

	usersGroup := r.Group("/users", authMw.RequireAuth())
	{
		usersGroup.GET("", authMw.RequireAction(authz.ActionListUsers), usersHandler.List)
		usersGroup.POST("", authMw.RequireAction(authz.ActionCreateUser), usersHandler.Create)
		usersGroup.GET("/:id", authMw.RequireAction(authz.ActionListUsers), usersHandler.GetByID)
	}

	storesGroup := r.Group("/stores", authMw.RequireAuth())
	{
		storesGroup.GET("", authMw.RequireAction(authz.ActionListStores), storesHandler.List)
		storesGroup.POST("", authMw.RequireAction(authz.ActionCreateStore), storesHandler.Create)
		storesGroup.GET("/mystats", authMw.RequireAction(authz.ActionViewOwnStats), storesHandler.MyStats)
		storesGroup.GET("/admin/stats", authMw.RequireAction(authz.ActionViewAdminStats), storesHandler.AdminStats)
		storesGroup.POST("/:id/rate", authMw.RequireAction(authz.ActionSubmitRating), storesHandler.Rate)
	}

	return r
}
