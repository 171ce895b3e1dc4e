package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/ratehub/internal/domain/job"
	"github.com/geocoder89/ratehub/internal/jobs"
	"github.com/geocoder89/ratehub/internal/notifications"
)

func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	start := time.Now()

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
	}

	err = w.execute(ctx, j)

	if w.prom != nil {
		w.prom.JobsInFlight.Dec()
	}

	if err != nil {
		w.handleFailure(ctx, j, err)
		w.observeResult(j.Type, "retry", time.Since(start))
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observeResult(j.Type, "failed", time.Since(start))
		return true, err
	}

	w.observeResult(j.Type, "done", time.Since(start))
	return true, nil
}

func (w *Worker) observeResult(jobType, result string, d time.Duration) {
	if w.prom == nil {
		return
	}
	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) {
	// attempts is pre-increment here; Reschedule bumps it
	if j.Attempts+1 >= j.MaxAttempts {
		w.log.Error("job exhausted retries", "job_id", j.ID, "type", j.Type, "err", execErr)
		_ = w.repo.MarkFailed(ctx, j.ID, execErr.Error())
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	w.log.Info("job rescheduled", "job_id", j.ID, "type", j.Type, "attempt", j.Attempts+1, "delay", delay.String(), "err", execErr)

	_ = w.repo.Reschedule(ctx, j.ID, time.Now().UTC().Add(delay), execErr.Error())
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	t := jobs.JobType(j.Type)

	payload, err := jobs.DecodePayload(t, j.Payload)

	if err != nil {
		return err
	}

	if err := jobs.ValidatePayload(t, payload); err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.RatingReceivedPayload:
		return w.executeRatingReceived(ctx, j, p)
	case jobs.WelcomeUserPayload:
		return w.executeWelcome(ctx, j, p)
	default:
		return jobs.ErrInvalidJobType
	}
}

func (w *Worker) executeRatingReceived(ctx context.Context, j job.Job, p jobs.RatingReceivedPayload) error {
	detail, err := w.ratings.NotificationDetail(ctx, p.RatingID)

	if err != nil {
		return fmt.Errorf("load rating detail: %w", err)
	}

	kind := string(jobs.JobRatingReceived)

	err = w.deliveries.TryStart(ctx, kind, detail.RatingID, j.ID, detail.OwnerEmail)

	if err != nil {
		if errors.Is(err, notifications.ErrAlreadySent) || errors.Is(err, notifications.ErrInProgress) {
			// someone else handled it; nothing left to do
			return nil
		}
		return err
	}

	err = w.notifier.SendRatingReceived(ctx, notifications.SendRatingReceivedInput{
		OwnerEmail: detail.OwnerEmail,
		OwnerName:  detail.OwnerName,
		StoreName:  detail.StoreName,
		Rating:     detail.Value,
		RaterName:  detail.RaterName,
	})

	if err != nil {
		_ = w.deliveries.MarkFailed(ctx, kind, detail.RatingID, err.Error())
		return err
	}

	return w.deliveries.MarkSent(ctx, kind, detail.RatingID)
}

func (w *Worker) executeWelcome(ctx context.Context, j job.Job, p jobs.WelcomeUserPayload) error {
	u, err := w.users.GetByID(ctx, p.UserID)

	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	kind := string(jobs.JobWelcomeUser)

	err = w.deliveries.TryStart(ctx, kind, u.ID, j.ID, u.Email)

	if err != nil {
		if errors.Is(err, notifications.ErrAlreadySent) || errors.Is(err, notifications.ErrInProgress) {
			return nil
		}
		return err
	}

	err = w.notifier.SendWelcome(ctx, notifications.SendWelcomeInput{
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
	})

	if err != nil {
		_ = w.deliveries.MarkFailed(ctx, kind, u.ID, err.Error())
		return err
	}

	return w.deliveries.MarkSent(ctx, kind, u.ID)
}
