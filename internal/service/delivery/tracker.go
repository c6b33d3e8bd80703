package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
	"github.com/roboclub/notification-api/pkg/logger"
)

// Tracker records the result of out-of-band delivery attempts, one channel
// at a time. Channels are independent: the email worker may report hours
// after push failed, and neither write disturbs the other.
type Tracker struct {
	repo   repository.NotificationRepository
	logger *logger.Logger
}

func NewTracker(repo repository.NotificationRepository, logger *logger.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		logger: logger,
	}
}

// RecordOutcome overwrites the channel's delivery record. sentAt (or
// deliveredAt for in-app) is stamped only on success; the error string is
// stored verbatim. Re-recording is allowed: a retried send replaces the
// previous outcome.
func (t *Tracker) RecordOutcome(ctx context.Context, id uuid.UUID, channel model.Channel, outcome model.Outcome) (*model.Notification, error) {
	n, err := t.repo.RecordOutcome(ctx, id, channel, outcome, time.Now())
	if err != nil {
		return nil, err
	}

	if outcome.Error != nil {
		t.logger.Warn("delivery attempt failed",
			"notification_id", id.String(), "channel", string(channel), "error", *outcome.Error)
	} else {
		t.logger.Debug("delivery outcome recorded",
			"notification_id", id.String(), "channel", string(channel))
	}
	return n, nil
}
