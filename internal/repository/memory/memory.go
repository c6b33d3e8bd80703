// Package memory holds in-memory repository implementations with the same
// contracts as the postgres ones. They back the service and handler tests and
// the local development mode, where a throwaway mailbox is more convenient
// than a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roboclub/notification-api/internal/model"
	apperrors "github.com/roboclub/notification-api/pkg/errors"
)

// NotificationRepository is a mutex-guarded map store.
type NotificationRepository struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		notifications: make(map[uuid.UUID]*model.Notification),
	}
}

func cloneNotification(n *model.Notification) *model.Notification {
	c := *n
	if n.RelatedEntity != nil {
		re := *n.RelatedEntity
		c.RelatedEntity = &re
	}
	if n.Action != nil {
		a := *n.Action
		c.Action = &a
	}
	return &c
}

func (r *NotificationRepository) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifications[n.ID]; exists {
		return fmt.Errorf("duplicate notification id %s", n.ID)
	}
	r.notifications[n.ID] = cloneNotification(n)
	return nil
}

func (r *NotificationRepository) Get(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	return cloneNotification(n), nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id uuid.UUID, readAt time.Time) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	if !n.Read {
		n.Read = true
		at := readAt
		n.ReadAt = &at
		n.UpdatedAt = readAt
	}
	return cloneNotification(n), nil
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, userID uuid.UUID, readAt time.Time) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked, total := 0, 0
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		total++
		if !n.Read && !n.Archived {
			n.Read = true
			at := readAt
			n.ReadAt = &at
			n.UpdatedAt = readAt
			marked++
		}
	}
	return marked, total, nil
}

func (r *NotificationRepository) Archive(_ context.Context, id uuid.UUID, archivedAt time.Time) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	if !n.Archived {
		n.Archived = true
		at := archivedAt
		n.ArchivedAt = &at
		n.UpdatedAt = archivedAt
	}
	return cloneNotification(n), nil
}

func (r *NotificationRepository) RecordOutcome(_ context.Context, id uuid.UUID, channel model.Channel, outcome model.Outcome, at time.Time) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}

	stamp := at
	switch channel {
	case model.ChannelEmail:
		n.Delivery.Email = channelOutcome(outcome, stamp)
	case model.ChannelPush:
		n.Delivery.Push = channelOutcome(outcome, stamp)
	case model.ChannelSMS:
		n.Delivery.SMS = channelOutcome(outcome, stamp)
	case model.ChannelInApp:
		n.Delivery.InApp = model.InAppOutcome{Delivered: outcome.Delivered}
		if outcome.Delivered {
			n.Delivery.InApp.DeliveredAt = &stamp
		}
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unrecognized channel %q", channel))
	}
	n.UpdatedAt = at
	return cloneNotification(n), nil
}

func channelOutcome(outcome model.Outcome, at time.Time) model.ChannelOutcome {
	co := model.ChannelOutcome{Sent: outcome.Sent, Error: outcome.Error}
	if outcome.Sent {
		co.SentAt = &at
	}
	return co
}

func matchesFilter(n *model.Notification, userID uuid.UUID, filter model.ListFilter, now time.Time) bool {
	if n.UserID != userID || n.Archived {
		return false
	}
	if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
		return false
	}
	if filter.Type != nil && n.Type != *filter.Type {
		return false
	}
	if filter.Priority != nil && n.Priority != *filter.Priority {
		return false
	}
	if filter.Read != nil && n.Read != *filter.Read {
		return false
	}
	return true
}

func (r *NotificationRepository) filtered(userID uuid.UUID, filter model.ListFilter) []*model.Notification {
	now := time.Now()
	var matched []*model.Notification
	for _, n := range r.notifications {
		if matchesFilter(n, userID, filter, now) {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})
	return matched
}

func (r *NotificationRepository) List(_ context.Context, userID uuid.UUID, filter model.ListFilter) ([]*model.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.filtered(userID, filter)
	total := len(matched)

	start := filter.Skip
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	page := make([]*model.Notification, 0, end-start)
	for _, n := range matched[start:end] {
		page = append(page, cloneNotification(n))
	}
	return page, total, nil
}

func (r *NotificationRepository) Stats(_ context.Context, userID uuid.UUID, filter model.ListFilter) (*model.ListStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &model.ListStats{
		ByType:     []model.TypeCount{},
		ByPriority: []model.PriorityCount{},
	}
	byType := make(map[model.Type]int)
	byPriority := make(map[model.Priority]int)

	for _, n := range r.filtered(userID, filter) {
		stats.Total++
		if n.Read {
			stats.Read++
		} else {
			stats.Unread++
		}
		byType[n.Type]++
		byPriority[n.Priority]++
	}

	for t, c := range byType {
		stats.ByType = append(stats.ByType, model.TypeCount{Type: t, Count: c})
	}
	for p, c := range byPriority {
		stats.ByPriority = append(stats.ByPriority, model.PriorityCount{Priority: p, Count: c})
	}
	sort.Slice(stats.ByType, func(i, j int) bool {
		if stats.ByType[i].Count != stats.ByType[j].Count {
			return stats.ByType[i].Count > stats.ByType[j].Count
		}
		return stats.ByType[i].Type < stats.ByType[j].Type
	})
	sort.Slice(stats.ByPriority, func(i, j int) bool {
		if stats.ByPriority[i].Count != stats.ByPriority[j].Count {
			return stats.ByPriority[i].Count > stats.ByPriority[j].Count
		}
		return stats.ByPriority[i].Priority < stats.ByPriority[j].Priority
	})

	return stats, nil
}

// SettingsRepository is a mutex-guarded map store keyed by user.
type SettingsRepository struct {
	mu       sync.Mutex
	settings map[uuid.UUID]*model.NotificationSettings
}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{
		settings: make(map[uuid.UUID]*model.NotificationSettings),
	}
}

func cloneSettings(s *model.NotificationSettings) *model.NotificationSettings {
	c := *s
	return &c
}

func (r *SettingsRepository) GetOrCreate(_ context.Context, userID uuid.UUID, defaults *model.NotificationSettings) (*model.NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.settings[userID]; ok {
		return cloneSettings(existing), nil
	}

	created := cloneSettings(defaults)
	created.UserID = userID
	now := time.Now()
	created.CreatedAt = now
	created.UpdatedAt = now
	r.settings[userID] = created
	return cloneSettings(created), nil
}

func (r *SettingsRepository) Save(_ context.Context, settings *model.NotificationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := cloneSettings(settings)
	saved.UpdatedAt = time.Now()
	if existing, ok := r.settings[settings.UserID]; ok {
		saved.CreatedAt = existing.CreatedAt
	}
	r.settings[settings.UserID] = saved
	return nil
}

// DeliveryJobRepository is a mutex-guarded job queue.
type DeliveryJobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*model.DeliveryJob
}

func NewDeliveryJobRepository() *DeliveryJobRepository {
	return &DeliveryJobRepository{
		jobs: make(map[uuid.UUID]*model.DeliveryJob),
	}
}

func (r *DeliveryJobRepository) Enqueue(_ context.Context, jobs []*model.DeliveryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range jobs {
		c := *job
		r.jobs[job.ID] = &c
	}
	return nil
}

func (r *DeliveryJobRepository) ClaimPending(_ context.Context, limit int) ([]*model.DeliveryJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var due []*model.DeliveryJob
	for _, job := range r.jobs {
		if job.Status != model.DeliveryJobStatusPending {
			continue
		}
		if job.RetryAt != nil && job.RetryAt.After(now) {
			continue
		}
		due = append(due, job)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*model.DeliveryJob, 0, len(due))
	for _, job := range due {
		job.Status = model.DeliveryJobStatusProcessing
		job.UpdatedAt = now
		c := *job
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

func (r *DeliveryJobRepository) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return apperrors.NotFound("delivery job", nil)
	}
	now := time.Now()
	job.Status = model.DeliveryJobStatusProcessed
	job.ProcessedAt = &now
	job.UpdatedAt = now
	return nil
}

func (r *DeliveryJobRepository) MarkFailed(_ context.Context, id uuid.UUID, lastError string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return apperrors.NotFound("delivery job", nil)
	}
	job.LastError = &lastError
	job.RetryCount++
	job.RetryAt = retryAt
	job.UpdatedAt = time.Now()
	if retryAt != nil {
		job.Status = model.DeliveryJobStatusPending
	} else {
		job.Status = model.DeliveryJobStatusFailed
	}
	return nil
}

// Job returns a copy of a stored job, for assertions.
func (r *DeliveryJobRepository) Job(id uuid.UUID) (*model.DeliveryJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	c := *job
	return &c, true
}

// All returns copies of every stored job, for assertions.
func (r *DeliveryJobRepository) All() []*model.DeliveryJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.DeliveryJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		c := *job
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
