package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
	apperrors "github.com/roboclub/notification-api/pkg/errors"
	"github.com/roboclub/notification-api/pkg/logger"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Service owns the notification lifecycle: creation, read/archive
// transitions and filtered, paginated reads with aggregate stats.
type Service struct {
	repo   repository.NotificationRepository
	logger *logger.Logger
}

func NewService(repo repository.NotificationRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ListResult bundles one mailbox page with the stats and pagination the
// console renders alongside it.
type ListResult struct {
	Notifications []*model.Notification
	Stats         *model.ListStats
	Limit         int
	Skip          int
	HasMore       bool
}

// Create validates and stores a notification. Delivery is the producer's
// responsibility; the stored row starts all-unsent on every channel.
func (s *Service) Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := time.Now()
	n := &model.Notification{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Title:         req.Title,
		Message:       req.Message,
		Type:          req.Type,
		Priority:      req.Priority,
		Category:      req.Category,
		RelatedEntity: req.RelatedEntity,
		Action:        req.Action,
		ExpiresAt:     req.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.logger.Debug("notification created", "id", n.ID.String(), "user_id", n.UserID.String(), "type", string(n.Type))
	n.ComputeTimeAgo(now)
	return n, nil
}

// Get returns one notification, refusing callers who do not own it.
func (s *Service) Get(ctx context.Context, callerID, id uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != callerID {
		return nil, apperrors.Forbidden("notification belongs to another user")
	}
	n.ComputeTimeAgo(time.Now())
	return n, nil
}

// MarkRead transitions a notification to read. Idempotent: marking an
// already-read notification returns the current state unchanged. The unread
// transition is not supported.
func (s *Service) MarkRead(ctx context.Context, callerID, id uuid.UUID) (*model.Notification, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != callerID {
		return nil, apperrors.Forbidden("notification belongs to another user")
	}

	n, err := s.repo.MarkRead(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}
	n.ComputeTimeAgo(time.Now())
	return n, nil
}

// MarkAllRead marks every unread, non-archived notification of the user.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (*model.MarkAllReadResult, error) {
	marked, total, err := s.repo.MarkAllRead(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	s.logger.Debug("marked all notifications read", "user_id", userID.String(), "marked", marked)
	return &model.MarkAllReadResult{
		MarkedCount:        marked,
		TotalNotifications: total,
	}, nil
}

// Archive removes a notification from active views. Archived notifications
// are excluded from default listings and from MarkAllRead's scope.
func (s *Service) Archive(ctx context.Context, callerID, id uuid.UUID) (*model.Notification, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != callerID {
		return nil, apperrors.Forbidden("notification belongs to another user")
	}

	n, err := s.repo.Archive(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}
	n.ComputeTimeAgo(time.Now())
	return n, nil
}

// List returns one filtered page plus stats computed over the same filtered
// set, so the console's "filtered" counts always agree with the page total.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter model.ListFilter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	notifications, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	stats, err := s.repo.Stats(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute notification stats: %w", err)
	}

	now := time.Now()
	for _, n := range notifications {
		n.ComputeTimeAgo(now)
	}

	return &ListResult{
		Notifications: notifications,
		Stats:         stats,
		Limit:         filter.Limit,
		Skip:          filter.Skip,
		HasMore:       filter.Skip+len(notifications) < total,
	}, nil
}

func validateCreate(req *model.CreateNotificationRequest) error {
	fields := make(map[string]string)

	if req.UserID == uuid.Nil {
		fields["userId"] = "user id is required"
	}
	if req.Title == "" {
		fields["title"] = "title is required"
	}
	if req.Message == "" {
		fields["message"] = "message is required"
	}
	switch {
	case req.Type == "":
		fields["type"] = "type is required"
	case !req.Type.Valid():
		fields["type"] = fmt.Sprintf("unrecognized type %q", req.Type)
	}
	switch {
	case req.Priority == "":
		fields["priority"] = "priority is required"
	case !req.Priority.Valid():
		fields["priority"] = fmt.Sprintf("unrecognized priority %q", req.Priority)
	}
	switch {
	case req.Category == "":
		fields["category"] = "category is required"
	case !req.Category.Valid():
		fields["category"] = fmt.Sprintf("unrecognized category %q", req.Category)
	}

	if len(fields) > 0 {
		return apperrors.ValidationFields("invalid notification", fields)
	}
	return nil
}

func validateFilter(filter model.ListFilter) error {
	fields := make(map[string]string)

	if filter.Type != nil && !filter.Type.Valid() {
		fields["type"] = fmt.Sprintf("unrecognized type %q", *filter.Type)
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		fields["priority"] = fmt.Sprintf("unrecognized priority %q", *filter.Priority)
	}

	if len(fields) > 0 {
		return apperrors.ValidationFields("invalid filter", fields)
	}
	return nil
}
