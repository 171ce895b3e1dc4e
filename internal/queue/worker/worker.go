package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/ratehub/internal/domain/job"
	"github.com/geocoder89/ratehub/internal/domain/rating"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/geocoder89/ratehub/internal/notifications"
	"github.com/geocoder89/ratehub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

// Deliveries is the exactly-once bookkeeping for notifications.
type Deliveries interface {
	TryStart(ctx context.Context, kind, entityID, jobID, recipient string) error
	MarkSent(ctx context.Context, kind, entityID string) error
	MarkFailed(ctx context.Context, kind, entityID, errMsg string) error
}

type RatingReads interface {
	NotificationDetail(ctx context.Context, ratingID string) (rating.NotificationDetail, error)
}

type UserReads interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg        Config
	repo       JobsRepository
	deliveries Deliveries
	ratings    RatingReads
	users      UserReads
	notifier   notifications.Notifier
	prom       *observability.Prom
	log        *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, deliveries Deliveries, ratings RatingReads, users UserReads, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	return &Worker{
		cfg:        cfg,
		repo:       repo,
		deliveries: deliveries,
		ratings:    ratings,
		users:      users,
		notifier:   notifier,
		prom:       prom,
		log:        log,
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run polls for claimable jobs until ctx is cancelled. Concurrency slots
// are a simple semaphore; in-flight jobs get ShutdownGrace to finish.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	w.setReady(true)

	for {
		select {
		case <-ctx.Done():
			w.setReady(false)
			w.log.Info("worker received shutdown signal, draining")

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()

			select {
			case <-done:
				w.log.Info("worker drain complete")
			case <-time.After(w.cfg.ShutdownGrace):
				w.log.Error("worker drain timed out")
			}
			return nil

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
			default:
				// all slots busy, try again next tick
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				processed, err := w.ProcessOne(context.WithoutCancel(ctx))

				if err != nil {
					w.log.Error("job processing error", "err", err)
				}
				_ = processed
			}()
		}
	}
}
