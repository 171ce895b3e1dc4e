package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/ratehub/internal/notifications"
	"github.com/geocoder89/ratehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveriesRepo tracks one row per (kind, entity) notification so retried
// jobs cannot double-send. The unique index on the pair is the dedupe.
type DeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *DeliveriesRepo {
	return &DeliveriesRepo{pool: pool, prom: prom}
}

func (r *DeliveriesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// TryStart claims the delivery for this worker. Outcomes:
//   - nil: we own it, go send
//   - notifications.ErrAlreadySent: another worker finished it
//   - notifications.ErrInProgress: another worker is sending right now
func (r *DeliveriesRepo) TryStart(ctx context.Context, kind, entityID, jobID, recipient string) error {
	// 1) Insert if missing
	err := r.observe("deliveries.try_start.insert", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO notification_deliveries (kind, entity_id, job_id, recipient, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
		`, kind, entityID, jobID, recipient)
		return err
	})

	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return err
	}

	// 2) Row exists. If it was failed, claim it for retry by switching back
	// to sending. Atomic: only one worker can flip failed -> sending.
	var claimed bool

	err = r.observe("deliveries.try_start.claim_retry", func() error {
		tag, uErr := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sending',
			    job_id = $3,
			    recipient = $4,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND entity_id = $2 AND status = 'failed'
		`, kind, entityID, jobID, recipient)

		if uErr != nil {
			return uErr
		}
		claimed = tag.RowsAffected() == 1
		return nil
	})

	if err != nil {
		return err
	}
	if claimed {
		return nil
	}

	// 3) Not failed. Already sent, or currently sending.
	var status string
	var sentAt *time.Time

	err = r.observe("deliveries.try_start.status", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT status, sent_at
			FROM notification_deliveries
			WHERE kind = $1 AND entity_id = $2
		`, kind, entityID).Scan(&status, &sentAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// row disappeared; let caller retry
			return nil
		}
		return err
	}

	if sentAt != nil || status == "sent" {
		return notifications.ErrAlreadySent
	}

	return notifications.ErrInProgress
}

func (r *DeliveriesRepo) MarkSent(ctx context.Context, kind, entityID string) error {
	return r.observe("deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sent',
			    sent_at = NOW(),
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND entity_id = $2
		`, kind, entityID)
		return err
	})
}

func (r *DeliveriesRepo) MarkFailed(ctx context.Context, kind, entityID, errMsg string) error {
	return r.observe("deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'failed',
			    last_error = $3,
			    updated_at = NOW()
			WHERE kind = $1 AND entity_id = $2
		`, kind, entityID, errMsg)
		return err
	})
}
