package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/ratehub/internal/config"
	"github.com/geocoder89/ratehub/internal/db"
	"github.com/geocoder89/ratehub/internal/notifications"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/geocoder89/ratehub/internal/queue/worker"
	"github.com/geocoder89/ratehub/internal/repo/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	{
		mctx, cancel := config.WithTimeout(10 * time.Second)

		if err := db.Migrate(mctx, pool); err != nil {
			cancel()
			log.Error("schema migration failed", "err", err)
			os.Exit(1)
		}
		cancel()
	}

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	ratingsRepo := postgres.NewRatingsRepo(pool, prom)
	usersRepo := postgres.NewUsersRepo(pool, prom)
	deliveriesRepo := postgres.NewDeliveriesRepo(pool, prom)

	notifier := notifications.NewProtectedNotifier(notifications.NewLogNotifier(), notifications.ProtectedNotifierConfig{
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenMaxCalls: 2,
	})

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  100 * time.Millisecond,
		WorkerID:      workerID,
		Concurrency:   4,
		ShutdownGrace: 10 * time.Second,
	}, jobsRepo, deliveriesRepo, ratingsRepo, usersRepo, notifier, prom, log)

	// health + metrics sidecar listener
	mux := http.NewServeMux()
	mux.Handle("/", w.HealthHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	healthSrv := &http.Server{
		Addr:              ":9091",
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := healthSrv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	{
		sctx, cancel := config.WithTimeout(5 * time.Second)
		_ = healthSrv.Shutdown(sctx)
		cancel()
	}

	log.Info("worker shutdown complete")
}
