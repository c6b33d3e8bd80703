package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository/memory"
	"github.com/roboclub/notification-api/internal/service/delivery"
	"github.com/roboclub/notification-api/internal/service/notification"
	"github.com/roboclub/notification-api/internal/service/preference"
	"github.com/roboclub/notification-api/pkg/logger"
	"github.com/roboclub/notification-api/pkg/messaging"
)

type publishedMessage struct {
	Topic   string
	Payload interface{}
}

type fakeBroker struct {
	mu        sync.Mutex
	published []publishedMessage
	failWith  error
}

func (b *fakeBroker) Publish(_ context.Context, topic string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.published = append(b.published, publishedMessage{Topic: topic, Payload: message})
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) messages() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedMessage(nil), b.published...)
}

type fixture struct {
	svc      *Service
	broker   *fakeBroker
	jobs     *memory.DeliveryJobRepository
	repo     *memory.NotificationRepository
	prefs    *preference.Service
	settings *memory.SettingsRepository
}

func newFixture() *fixture {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	repo := memory.NewNotificationRepository()
	settingsRepo := memory.NewSettingsRepository()
	jobs := memory.NewDeliveryJobRepository()
	broker := &fakeBroker{}

	notificationSvc := notification.NewService(repo, log)
	prefs := preference.NewService(settingsRepo, log)
	tracker := delivery.NewTracker(repo, log)

	return &fixture{
		svc:      NewService(notificationSvc, prefs, jobs, tracker, broker, log),
		broker:   broker,
		jobs:     jobs,
		repo:     repo,
		prefs:    prefs,
		settings: settingsRepo,
	}
}

func dispatchRequest(userID uuid.UUID) *model.CreateNotificationRequest {
	return &model.CreateNotificationRequest{
		UserID:   userID,
		Title:    "Event reminder",
		Message:  "Robotics workshop starts in one hour.",
		Type:     model.TypeEventReminder,
		Priority: model.PriorityMedium,
		Category: model.CategoryInfo,
		Recipients: &model.Recipients{
			Email: "member@roboclub.example.org",
			Push:  "device-token-1",
			SMS:   "+15550100",
		},
	}
}

// disableQuietHours keeps eligibility decisions independent of the wall clock
// the test happens to run at.
func disableQuietHours(t *testing.T, f *fixture, userID uuid.UUID) {
	t.Helper()
	off := false
	_, err := f.prefs.UpdateSettings(context.Background(), userID, &model.SettingsPatch{
		QuietHours: &model.QuietHoursPatch{Enabled: &off},
	})
	require.NoError(t, err)
}

func TestDispatchQueuesEligibleTransports(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	disableQuietHours(t, f, userID)

	result, err := f.svc.Dispatch(context.Background(), dispatchRequest(userID))
	require.NoError(t, err)

	assert.True(t, result.Channels[model.ChannelEmail])
	assert.True(t, result.Channels[model.ChannelPush])
	assert.False(t, result.Channels[model.ChannelSMS], "SMS is disabled by default")
	assert.True(t, result.Channels[model.ChannelInApp])

	jobs := f.jobs.All()
	require.Len(t, jobs, 2)
	channels := map[model.Channel]bool{}
	for _, job := range jobs {
		channels[job.Channel] = true
		assert.Equal(t, result.Notification.ID, job.NotificationID)
		assert.Equal(t, model.DeliveryJobStatusPending, job.Status)
		assert.NotEmpty(t, job.Recipient)
	}
	assert.True(t, channels[model.ChannelEmail])
	assert.True(t, channels[model.ChannelPush])
}

func TestDispatchSkipsChannelsWithoutRecipient(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	disableQuietHours(t, f, userID)

	req := dispatchRequest(userID)
	req.Recipients = &model.Recipients{Email: "member@roboclub.example.org"}

	result, err := f.svc.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Channels[model.ChannelPush], "eligibility is independent of having an address")

	jobs := f.jobs.All()
	require.Len(t, jobs, 1)
	assert.Equal(t, model.ChannelEmail, jobs[0].Channel)
}

func TestDispatchDeliversInApp(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	disableQuietHours(t, f, userID)

	result, err := f.svc.Dispatch(context.Background(), dispatchRequest(userID))
	require.NoError(t, err)

	assert.True(t, result.Notification.Delivery.InApp.Delivered)
	assert.NotNil(t, result.Notification.Delivery.InApp.DeliveredAt)

	stored, err := f.repo.Get(context.Background(), result.Notification.ID)
	require.NoError(t, err)
	assert.True(t, stored.Delivery.InApp.Delivered)

	var userEvents []publishedMessage
	for _, msg := range f.broker.messages() {
		if msg.Topic == messaging.UserTopic(userID.String()) {
			userEvents = append(userEvents, msg)
		}
	}
	require.Len(t, userEvents, 1)
	event, ok := userEvents[0].Payload.(InAppEvent)
	require.True(t, ok)
	assert.Equal(t, result.Notification.ID, event.NotificationID)
	assert.Equal(t, userID, event.UserID)
}

func TestDispatchInAppSuppressedByPreference(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	disableQuietHours(t, f, userID)

	off := false
	_, err := f.prefs.UpdateSettings(context.Background(), userID, &model.SettingsPatch{
		InApp: &model.ChannelSettingsPatch{Enabled: &off},
	})
	require.NoError(t, err)

	result, err := f.svc.Dispatch(context.Background(), dispatchRequest(userID))
	require.NoError(t, err)

	assert.False(t, result.Channels[model.ChannelInApp])
	assert.False(t, result.Notification.Delivery.InApp.Delivered)
	assert.Empty(t, f.broker.messages())
}

func TestDispatchPublishFailureDoesNotFailCreation(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	disableQuietHours(t, f, userID)
	f.broker.failWith = errors.New("redis down")

	result, err := f.svc.Dispatch(context.Background(), dispatchRequest(userID))
	require.NoError(t, err, "a dead realtime feed only costs the live badge")

	// The mailbox row is the delivery, so the record still stands.
	assert.True(t, result.Notification.Delivery.InApp.Delivered)
}

func TestDispatchValidationStopsFanout(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Dispatch(context.Background(), &model.CreateNotificationRequest{})
	require.Error(t, err)
	assert.Empty(t, f.jobs.All())
	assert.Empty(t, f.broker.messages())
}
