package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
)

type deliveryJobRepository struct {
	db *sqlx.DB
}

func NewDeliveryJobRepository(db *sqlx.DB) repository.DeliveryJobRepository {
	return &deliveryJobRepository{db: db}
}

func (r *deliveryJobRepository) Enqueue(ctx context.Context, jobs []*model.DeliveryJob) error {
	if len(jobs) == 0 {
		return nil
	}

	query := `
		INSERT INTO delivery_jobs (
			id, notification_id, user_id, channel, recipient,
			subject, body, status, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, job := range jobs {
		_, err := tx.ExecContext(ctx, query,
			job.ID, job.NotificationID, job.UserID, job.Channel, job.Recipient,
			job.Subject, job.Body, job.Status, job.RetryCount,
			job.CreatedAt, job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to enqueue delivery job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delivery jobs: %w", err)
	}
	return nil
}

func (r *deliveryJobRepository) ClaimPending(ctx context.Context, limit int) ([]*model.DeliveryJob, error) {
	// SKIP LOCKED lets concurrent workers claim disjoint batches without
	// blocking each other or double-sending.
	query := `
		UPDATE delivery_jobs
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM delivery_jobs
			WHERE status = $2 AND (retry_at IS NULL OR retry_at <= NOW())
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, notification_id, user_id, channel, recipient,
			subject, body, status, retry_count, retry_at, last_error,
			created_at, updated_at, processed_at
	`

	var jobs []*model.DeliveryJob
	if err := r.db.SelectContext(ctx, &jobs, query,
		model.DeliveryJobStatusProcessing, model.DeliveryJobStatusPending, limit,
	); err != nil {
		return nil, fmt.Errorf("failed to claim pending delivery jobs: %w", err)
	}
	return jobs, nil
}

func (r *deliveryJobRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE delivery_jobs
		SET status = $2, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, model.DeliveryJobStatusProcessed); err != nil {
		return fmt.Errorf("failed to mark delivery job processed: %w", err)
	}
	return nil
}

func (r *deliveryJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string, retryAt *time.Time) error {
	status := model.DeliveryJobStatusFailed
	if retryAt != nil {
		status = model.DeliveryJobStatusPending
	}

	query := `
		UPDATE delivery_jobs
		SET status = $2, last_error = $3, retry_at = $4,
			retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, status, lastError, retryAt); err != nil {
		return fmt.Errorf("failed to mark delivery job failed: %w", err)
	}
	return nil
}
