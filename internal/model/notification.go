package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the platform event that produced a notification.
type Type string

const (
	TypeProjectUpdate   Type = "project_update"
	TypeProjectApproved Type = "project_approved"
	TypeProjectRejected Type = "project_rejected"
	TypeEventReminder   Type = "event_reminder"
	TypeNewsPublished   Type = "news_published"
	TypeNewsletterIssue Type = "newsletter_issue"
	TypeMediaUpload     Type = "media_upload"
	TypeInventoryAlert  Type = "inventory_alert"
	TypeSystemAlert     Type = "system_alert"
	TypeSecurityAlert   Type = "security_alert"
	TypeUserActivity    Type = "user_activity"
	TypeContactMessage  Type = "contact_message"
)

var validTypes = map[Type]struct{}{
	TypeProjectUpdate: {}, TypeProjectApproved: {}, TypeProjectRejected: {},
	TypeEventReminder: {}, TypeNewsPublished: {}, TypeNewsletterIssue: {},
	TypeMediaUpload: {}, TypeInventoryAlert: {}, TypeSystemAlert: {},
	TypeSecurityAlert: {}, TypeUserActivity: {}, TypeContactMessage: {},
}

func (t Type) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// Priority orders notifications by urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Category is the presentation grouping the console uses, independent of Type.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
	CategorySystem  Category = "system"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryInfo, CategorySuccess, CategoryWarning, CategoryError, CategorySystem:
		return true
	}
	return false
}

// Channel is one delivery mechanism, tracked independently per notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
)

// Channels lists every delivery channel in a stable order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelPush, ChannelSMS, ChannelInApp}
}

// ParseChannel resolves a wire-format channel name. The console sends the
// camel-cased "inApp" form, workers use the snake-cased one.
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "email":
		return ChannelEmail, nil
	case "push":
		return ChannelPush, nil
	case "sms":
		return ChannelSMS, nil
	case "in_app", "inApp":
		return ChannelInApp, nil
	}
	return "", fmt.Errorf("unrecognized channel %q", s)
}

// RelatedEntity is a weak back-reference to the business object that
// triggered the notification. Never an ownership link.
type RelatedEntity struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Action is a single suggested follow-up the console may render as a button.
type Action struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Label string `json:"label"`
}

// ChannelOutcome records the last delivery attempt for email, push or SMS.
type ChannelOutcome struct {
	Sent   bool       `json:"sent"`
	SentAt *time.Time `json:"sentAt"`
	Error  *string    `json:"error"`
}

// InAppOutcome records in-app (console mailbox) delivery.
type InAppOutcome struct {
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"deliveredAt"`
}

// DeliveryState carries one independent outcome record per channel. Each
// record may be written at a different time as out-of-band delivery completes.
type DeliveryState struct {
	Email ChannelOutcome `json:"email"`
	Push  ChannelOutcome `json:"push"`
	SMS   ChannelOutcome `json:"sms"`
	InApp InAppOutcome   `json:"inApp"`
}

// Outcome is the result of one delivery attempt on one channel.
// Sent/Error apply to email, push and SMS; Delivered applies to in-app.
type Outcome struct {
	Sent      bool    `json:"sent"`
	Delivered bool    `json:"delivered"`
	Error     *string `json:"error,omitempty"`
}

// Notification is the unit of communication to one user.
type Notification struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"userId"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Type          Type           `json:"type"`
	Priority      Priority       `json:"priority"`
	Category      Category       `json:"category"`
	RelatedEntity *RelatedEntity `json:"relatedEntity,omitempty"`
	Action        *Action        `json:"action,omitempty"`
	Delivery      DeliveryState  `json:"delivery"`
	Read          bool           `json:"read"`
	ReadAt        *time.Time     `json:"readAt,omitempty"`
	Archived      bool           `json:"archived"`
	ArchivedAt    *time.Time     `json:"archivedAt,omitempty"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`

	// TimeAgo is derived from CreatedAt at read time, never stored.
	TimeAgo string `json:"timeAgo,omitempty"`
}

// ComputeTimeAgo refreshes the derived display value relative to now.
func (n *Notification) ComputeTimeAgo(now time.Time) {
	n.TimeAgo = TimeAgo(n.CreatedAt, now)
}

// TimeAgo renders a coarse relative timestamp for the console list view.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

// CreateNotificationRequest is the producer-facing creation payload.
type CreateNotificationRequest struct {
	UserID        uuid.UUID      `json:"userId" binding:"required"`
	Title         string         `json:"title" binding:"required"`
	Message       string         `json:"message" binding:"required"`
	Type          Type           `json:"type" binding:"required"`
	Priority      Priority       `json:"priority" binding:"required"`
	Category      Category       `json:"category" binding:"required"`
	RelatedEntity *RelatedEntity `json:"relatedEntity,omitempty"`
	Action        *Action        `json:"action,omitempty"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
	Recipients    *Recipients    `json:"recipients,omitempty"`
}

// Recipients carries the transport addresses the producer resolved for the
// target user. The core never stores them on the notification; they ride on
// the delivery jobs handed to the dispatcher.
type Recipients struct {
	Email string `json:"email,omitempty"`
	Push  string `json:"push,omitempty"`
	SMS   string `json:"sms,omitempty"`
}

// ListFilter narrows a mailbox listing. Nil members are not applied.
type ListFilter struct {
	Type     *Type
	Priority *Priority
	Read     *bool
	Limit    int
	Skip     int
}

// TypeCount is one grouped count in list stats.
type TypeCount struct {
	Type  Type `json:"type"`
	Count int  `json:"count"`
}

// PriorityCount is one grouped count in list stats.
type PriorityCount struct {
	Priority Priority `json:"priority"`
	Count    int      `json:"count"`
}

// ListStats aggregates the same filtered set that produced the page items.
type ListStats struct {
	Total      int             `json:"total"`
	Unread     int             `json:"unread"`
	Read       int             `json:"read"`
	ByType     []TypeCount     `json:"byType"`
	ByPriority []PriorityCount `json:"byPriority"`
}

// MarkAllReadResult reports the outcome of a bulk read transition.
type MarkAllReadResult struct {
	MarkedCount        int `json:"markedCount"`
	TotalNotifications int `json:"totalNotifications"`
}
