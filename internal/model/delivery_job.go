package model

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryJobStatus string

const (
	DeliveryJobStatusPending    DeliveryJobStatus = "PENDING"
	DeliveryJobStatusProcessing DeliveryJobStatus = "PROCESSING"
	DeliveryJobStatusProcessed  DeliveryJobStatus = "PROCESSED"
	DeliveryJobStatusFailed     DeliveryJobStatus = "FAILED"
)

// DeliveryJob is one pending transport attempt for one channel of one
// notification. The dispatcher worker claims jobs in batches, attempts the
// send and records the outcome on the notification.
type DeliveryJob struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	NotificationID uuid.UUID         `db:"notification_id" json:"notificationId"`
	UserID         uuid.UUID         `db:"user_id" json:"userId"`
	Channel        Channel           `db:"channel" json:"channel"`
	Recipient      string            `db:"recipient" json:"recipient"`
	Subject        string            `db:"subject" json:"subject"`
	Body           string            `db:"body" json:"body"`
	Status         DeliveryJobStatus `db:"status" json:"status"`
	RetryCount     int               `db:"retry_count" json:"retryCount"`
	RetryAt        *time.Time        `db:"retry_at" json:"retryAt,omitempty"`
	LastError      *string           `db:"last_error" json:"lastError,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
	ProcessedAt    *time.Time        `db:"processed_at" json:"processedAt,omitempty"`
}
