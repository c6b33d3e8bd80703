package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roboclub/notification-api/internal/model"
)

// NotificationRepository owns notification rows. Implementations must keep
// single-notification mutations serialized: MarkRead, Archive and
// RecordOutcome are each a single conditional UPDATE touching disjoint
// columns, so concurrent writes to one row never lose each other.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)

	// MarkRead sets read=true exactly once; marking an already-read
	// notification leaves readAt untouched. Returns the stored row.
	MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) (*model.Notification, error)

	// MarkAllRead is a single conditional bulk update over the user's
	// unread, non-archived notifications. Returns how many rows changed
	// and the user's total notification count.
	MarkAllRead(ctx context.Context, userID uuid.UUID, readAt time.Time) (marked int, total int, err error)

	Archive(ctx context.Context, id uuid.UUID, archivedAt time.Time) (*model.Notification, error)

	// RecordOutcome overwrites one channel's delivery record, leaving every
	// other channel's columns alone.
	RecordOutcome(ctx context.Context, id uuid.UUID, channel model.Channel, outcome model.Outcome, at time.Time) (*model.Notification, error)

	// List returns one page ordered newest-created first (ties broken by id)
	// plus the filtered total. Archived and expired rows are excluded.
	List(ctx context.Context, userID uuid.UUID, filter model.ListFilter) ([]*model.Notification, int, error)

	// Stats aggregates the same filtered set List reads from, in one
	// grouped query.
	Stats(ctx context.Context, userID uuid.UUID, filter model.ListFilter) (*model.ListStats, error)
}

// SettingsRepository owns the one-per-user settings document.
type SettingsRepository interface {
	// GetOrCreate returns the stored document, inserting defaults with an
	// upsert-style write so concurrent first reads cannot create duplicates.
	GetOrCreate(ctx context.Context, userID uuid.UUID, defaults *model.NotificationSettings) (*model.NotificationSettings, error)

	// Save replaces the stored document for the user.
	Save(ctx context.Context, settings *model.NotificationSettings) error
}

// DeliveryJobRepository queues per-channel transport attempts for the
// dispatcher worker.
type DeliveryJobRepository interface {
	Enqueue(ctx context.Context, jobs []*model.DeliveryJob) error

	// ClaimPending locks and claims up to limit due jobs so concurrent
	// workers never double-send.
	ClaimPending(ctx context.Context, limit int) ([]*model.DeliveryJob, error)

	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed records the error and either schedules a retry or parks
	// the job terminally once retries are exhausted.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string, retryAt *time.Time) error
}
