package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
	"github.com/roboclub/notification-api/internal/service/delivery"
	"github.com/roboclub/notification-api/internal/service/notification"
	"github.com/roboclub/notification-api/internal/service/preference"
	"github.com/roboclub/notification-api/pkg/logger"
	"github.com/roboclub/notification-api/pkg/messaging"
)

// Service is the producer-facing entry point: it stores the notification,
// asks the preference engine which channels are eligible right now, queues
// transport jobs for the dispatcher worker and delivers the in-app copy
// immediately.
type Service struct {
	notifications *notification.Service
	prefs         *preference.Service
	jobs          repository.DeliveryJobRepository
	tracker       *delivery.Tracker
	broker        messaging.Broker
	logger        *logger.Logger
}

func NewService(
	notifications *notification.Service,
	prefs *preference.Service,
	jobs repository.DeliveryJobRepository,
	tracker *delivery.Tracker,
	broker messaging.Broker,
	logger *logger.Logger,
) *Service {
	return &Service{
		notifications: notifications,
		prefs:         prefs,
		jobs:          jobs,
		tracker:       tracker,
		broker:        broker,
		logger:        logger,
	}
}

// Result reports the stored notification and the per-channel eligibility
// decision made at creation time.
type Result struct {
	Notification *model.Notification    `json:"notification"`
	Channels     map[model.Channel]bool `json:"channels"`
}

// InAppEvent is the realtime payload pushed to the console's mailbox feed.
type InAppEvent struct {
	NotificationID uuid.UUID      `json:"notificationId"`
	UserID         uuid.UUID      `json:"userId"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Type           model.Type     `json:"type"`
	Priority       model.Priority `json:"priority"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Dispatch creates the notification and fans out delivery. Preference
// failures never block creation: when settings cannot be loaded the
// documented defaults decide instead.
func (s *Service) Dispatch(ctx context.Context, req *model.CreateNotificationRequest) (*Result, error) {
	n, err := s.notifications.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	settings, err := s.prefs.GetSettings(ctx, req.UserID)
	if err != nil {
		s.logger.Error(err, "failed to load settings, falling back to defaults", "user_id", req.UserID.String())
		settings = model.DefaultSettings(req.UserID)
	}

	now := time.Now()
	decisions := make(map[model.Channel]bool, 4)
	for _, ch := range model.Channels() {
		decisions[ch] = preference.ChannelEligible(settings, ch, n.Type, now)
	}

	s.enqueueTransportJobs(ctx, n, req.Recipients, decisions, now)

	if decisions[model.ChannelInApp] {
		s.deliverInApp(ctx, n)
	}

	return &Result{Notification: n, Channels: decisions}, nil
}

// enqueueTransportJobs queues one job per eligible transport channel with a
// known recipient address. Ineligible channels stay all-unsent; the worker
// re-checks eligibility at send time anyway.
func (s *Service) enqueueTransportJobs(ctx context.Context, n *model.Notification, recipients *model.Recipients, decisions map[model.Channel]bool, now time.Time) {
	if recipients == nil {
		recipients = &model.Recipients{}
	}
	addresses := map[model.Channel]string{
		model.ChannelEmail: recipients.Email,
		model.ChannelPush:  recipients.Push,
		model.ChannelSMS:   recipients.SMS,
	}

	var jobs []*model.DeliveryJob
	for _, ch := range []model.Channel{model.ChannelEmail, model.ChannelPush, model.ChannelSMS} {
		if !decisions[ch] {
			continue
		}
		if addresses[ch] == "" {
			s.logger.Debug("no recipient address for channel, skipping transport",
				"notification_id", n.ID.String(), "channel", string(ch))
			continue
		}
		jobs = append(jobs, &model.DeliveryJob{
			ID:             uuid.New(),
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        ch,
			Recipient:      addresses[ch],
			Subject:        n.Title,
			Body:           n.Message,
			Status:         model.DeliveryJobStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if len(jobs) == 0 {
		return
	}
	if err := s.jobs.Enqueue(ctx, jobs); err != nil {
		// Transport can be retried by the producer; the notification itself
		// is already stored.
		s.logger.Error(err, "failed to enqueue delivery jobs", "notification_id", n.ID.String())
	}
}

// deliverInApp records the console-mailbox delivery and pushes the realtime
// event. The mailbox row is the delivery; a failed realtime publish only
// costs the live badge update.
func (s *Service) deliverInApp(ctx context.Context, n *model.Notification) {
	updated, err := s.tracker.RecordOutcome(ctx, n.ID, model.ChannelInApp, model.Outcome{Delivered: true})
	if err != nil {
		s.logger.Error(err, "failed to record in-app delivery", "notification_id", n.ID.String())
		return
	}
	n.Delivery = updated.Delivery

	event := InAppEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		Message:        n.Message,
		Type:           n.Type,
		Priority:       n.Priority,
		CreatedAt:      n.CreatedAt,
	}
	if err := s.broker.Publish(ctx, messaging.UserTopic(n.UserID.String()), event); err != nil {
		s.logger.Error(err, "failed to publish in-app event", "notification_id", n.ID.String())
	}
}
