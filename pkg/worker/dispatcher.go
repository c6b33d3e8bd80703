package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roboclub/notification-api/internal/email"
	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
	"github.com/roboclub/notification-api/internal/service/delivery"
	"github.com/roboclub/notification-api/internal/service/preference"
	"github.com/roboclub/notification-api/pkg/logger"
	"github.com/roboclub/notification-api/pkg/messaging"
	"github.com/roboclub/notification-api/pkg/metrics"
)

type DispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// Dispatcher drains the delivery job queue: it claims due jobs in batches,
// re-checks channel eligibility at send time, attempts the transport and
// records the outcome on the notification. It is the "delivery arm" the core
// stays decoupled from.
type Dispatcher struct {
	jobs          repository.DeliveryJobRepository
	notifications repository.NotificationRepository
	prefs         *preference.Service
	tracker       *delivery.Tracker
	sender        email.Sender
	broker        messaging.Broker
	config        DispatcherConfig
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewDispatcher(
	jobs repository.DeliveryJobRepository,
	notifications repository.NotificationRepository,
	prefs *preference.Service,
	tracker *delivery.Tracker,
	sender email.Sender,
	broker messaging.Broker,
	config DispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Dispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 30 * time.Second
	}

	return &Dispatcher{
		jobs:          jobs,
		notifications: notifications,
		prefs:         prefs,
		tracker:       tracker,
		sender:        sender,
		broker:        broker,
		config:        config,
		logger:        logger,
		metrics:       metrics,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("starting delivery dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down delivery dispatcher")
			return
		case <-ticker.C:
			if err := d.processBatch(ctx); err != nil {
				d.logger.Error(err, "failed to process delivery batch")
			}
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(d.metrics.DeliveryLatency)
	defer timer.ObserveDuration()

	jobs, err := d.jobs.ClaimPending(ctx, d.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	d.metrics.QueueClaimSize.Set(float64(len(jobs)))

	for _, job := range jobs {
		d.processJob(ctx, job)
	}
	return nil
}

func (d *Dispatcher) processJob(ctx context.Context, job *model.DeliveryJob) {
	suppressed, err := d.suppressedNow(ctx, job)
	if err != nil {
		d.retryOrFail(ctx, job, err)
		return
	}
	if suppressed {
		// Preferences changed since enqueue. The channel stays unsent and
		// the job is done.
		d.logger.Debug("delivery suppressed by preferences",
			"job_id", job.ID.String(), "channel", string(job.Channel))
		if err := d.jobs.MarkProcessed(ctx, job.ID); err != nil {
			d.logger.Error(err, "failed to mark suppressed job processed", "job_id", job.ID.String())
		}
		return
	}

	sendErr := d.attempt(ctx, job)

	outcome := model.Outcome{Sent: sendErr == nil}
	if sendErr != nil {
		msg := sendErr.Error()
		outcome.Error = &msg
	}
	if _, err := d.tracker.RecordOutcome(ctx, job.NotificationID, job.Channel, outcome); err != nil {
		d.logger.Error(err, "failed to record delivery outcome", "job_id", job.ID.String())
	}

	if sendErr != nil {
		d.metrics.DeliveriesAttempted.WithLabelValues(string(job.Channel), "error").Inc()
		d.retryOrFail(ctx, job, sendErr)
		return
	}

	d.metrics.DeliveriesAttempted.WithLabelValues(string(job.Channel), "success").Inc()
	if err := d.jobs.MarkProcessed(ctx, job.ID); err != nil {
		d.logger.Error(err, "failed to mark job processed", "job_id", job.ID.String())
	}
}

// suppressedNow re-evaluates eligibility at send time; an email queued just
// before quiet hours started must not go out inside them.
func (d *Dispatcher) suppressedNow(ctx context.Context, job *model.DeliveryJob) (bool, error) {
	n, err := d.notifications.Get(ctx, job.NotificationID)
	if err != nil {
		return false, fmt.Errorf("failed to load notification: %w", err)
	}
	settings, err := d.prefs.GetSettings(ctx, job.UserID)
	if err != nil {
		// Fail open: a broken settings read must not stall the queue.
		d.logger.Error(err, "failed to load settings, delivering anyway", "job_id", job.ID.String())
		return false, nil
	}
	return !preference.ChannelEligible(settings, job.Channel, n.Type, time.Now()), nil
}

func (d *Dispatcher) attempt(ctx context.Context, job *model.DeliveryJob) error {
	switch job.Channel {
	case model.ChannelEmail:
		return d.sender.Send(ctx, job.Recipient, job.Subject, job.Body)
	case model.ChannelPush:
		return d.broker.Publish(ctx, messaging.TopicPushGateway, gatewayPayload(job))
	case model.ChannelSMS:
		return d.broker.Publish(ctx, messaging.TopicSMSGateway, gatewayPayload(job))
	default:
		return fmt.Errorf("unsupported transport channel %q", job.Channel)
	}
}

type gatewayMessage struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
	Recipient      string `json:"recipient"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

func gatewayPayload(job *model.DeliveryJob) gatewayMessage {
	return gatewayMessage{
		NotificationID: job.NotificationID.String(),
		UserID:         job.UserID.String(),
		Recipient:      job.Recipient,
		Subject:        job.Subject,
		Body:           job.Body,
	}
}

func (d *Dispatcher) retryOrFail(ctx context.Context, job *model.DeliveryJob, cause error) {
	if job.RetryCount+1 >= d.config.MaxRetries {
		d.metrics.DeliveriesFailed.WithLabelValues(string(job.Channel)).Inc()
		if err := d.jobs.MarkFailed(ctx, job.ID, cause.Error(), nil); err != nil {
			d.logger.Error(err, "failed to park delivery job", "job_id", job.ID.String())
		}
		return
	}

	retryAt := time.Now().Add(d.config.RetryDelay * time.Duration(job.RetryCount+1))
	d.metrics.DeliveryRetries.WithLabelValues(string(job.Channel)).Inc()
	if err := d.jobs.MarkFailed(ctx, job.ID, cause.Error(), &retryAt); err != nil {
		d.logger.Error(err, "failed to schedule delivery retry", "job_id", job.ID.String())
	}
}
