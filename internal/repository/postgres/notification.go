package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
	apperrors "github.com/roboclub/notification-api/pkg/errors"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `
	id, user_id, title, message, type, priority, category,
	related_entity_type, related_entity_id, related_entity_title,
	action_type, action_url, action_label,
	email_sent, email_sent_at, email_error,
	push_sent, push_sent_at, push_error,
	sms_sent, sms_sent_at, sms_error,
	in_app_delivered, in_app_delivered_at,
	read, read_at, archived, archived_at, expires_at,
	created_at, updated_at`

type notificationRow struct {
	ID                 uuid.UUID      `db:"id"`
	UserID             uuid.UUID      `db:"user_id"`
	Title              string         `db:"title"`
	Message            string         `db:"message"`
	Type               string         `db:"type"`
	Priority           string         `db:"priority"`
	Category           string         `db:"category"`
	RelatedEntityType  sql.NullString `db:"related_entity_type"`
	RelatedEntityID    sql.NullString `db:"related_entity_id"`
	RelatedEntityTitle sql.NullString `db:"related_entity_title"`
	ActionType         sql.NullString `db:"action_type"`
	ActionURL          sql.NullString `db:"action_url"`
	ActionLabel        sql.NullString `db:"action_label"`
	EmailSent          bool           `db:"email_sent"`
	EmailSentAt        *time.Time     `db:"email_sent_at"`
	EmailError         *string        `db:"email_error"`
	PushSent           bool           `db:"push_sent"`
	PushSentAt         *time.Time     `db:"push_sent_at"`
	PushError          *string        `db:"push_error"`
	SMSSent            bool           `db:"sms_sent"`
	SMSSentAt          *time.Time     `db:"sms_sent_at"`
	SMSError           *string        `db:"sms_error"`
	InAppDelivered     bool           `db:"in_app_delivered"`
	InAppDeliveredAt   *time.Time     `db:"in_app_delivered_at"`
	Read               bool           `db:"read"`
	ReadAt             *time.Time     `db:"read_at"`
	Archived           bool           `db:"archived"`
	ArchivedAt         *time.Time     `db:"archived_at"`
	ExpiresAt          *time.Time     `db:"expires_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r notificationRow) toModel() *model.Notification {
	n := &model.Notification{
		ID:       r.ID,
		UserID:   r.UserID,
		Title:    r.Title,
		Message:  r.Message,
		Type:     model.Type(r.Type),
		Priority: model.Priority(r.Priority),
		Category: model.Category(r.Category),
		Delivery: model.DeliveryState{
			Email: model.ChannelOutcome{Sent: r.EmailSent, SentAt: r.EmailSentAt, Error: r.EmailError},
			Push:  model.ChannelOutcome{Sent: r.PushSent, SentAt: r.PushSentAt, Error: r.PushError},
			SMS:   model.ChannelOutcome{Sent: r.SMSSent, SentAt: r.SMSSentAt, Error: r.SMSError},
			InApp: model.InAppOutcome{Delivered: r.InAppDelivered, DeliveredAt: r.InAppDeliveredAt},
		},
		Read:       r.Read,
		ReadAt:     r.ReadAt,
		Archived:   r.Archived,
		ArchivedAt: r.ArchivedAt,
		ExpiresAt:  r.ExpiresAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.RelatedEntityType.Valid || r.RelatedEntityID.Valid {
		n.RelatedEntity = &model.RelatedEntity{
			Type:  r.RelatedEntityType.String,
			ID:    r.RelatedEntityID.String,
			Title: r.RelatedEntityTitle.String,
		}
	}
	if r.ActionType.Valid || r.ActionURL.Valid {
		n.Action = &model.Action{
			Type:  r.ActionType.String,
			URL:   r.ActionURL.String,
			Label: r.ActionLabel.String,
		}
	}
	return n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, title, message, type, priority, category,
			related_entity_type, related_entity_id, related_entity_title,
			action_type, action_url, action_label,
			expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	var reType, reID, reTitle, acType, acURL, acLabel sql.NullString
	if n.RelatedEntity != nil {
		reType = nullString(n.RelatedEntity.Type)
		reID = nullString(n.RelatedEntity.ID)
		reTitle = nullString(n.RelatedEntity.Title)
	}
	if n.Action != nil {
		acType = nullString(n.Action.Type)
		acURL = nullString(n.Action.URL)
		acLabel = nullString(n.Action.Label)
	}

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Priority, n.Category,
		reType, reID, reTitle,
		acType, acURL, acLabel,
		n.ExpiresAt, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	var row notificationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return row.toModel(), nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) (*model.Notification, error) {
	// Conditional update keeps the transition idempotent: an already-read
	// row is untouched and readAt survives repeat calls.
	query := `
		UPDATE notifications
		SET read = TRUE, read_at = $2, updated_at = $2
		WHERE id = $1 AND read = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, id, readAt); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, readAt time.Time) (int, int, error) {
	// One conditional bulk update; a notification created concurrently is
	// either included or left unread, never double-counted.
	query := `
		UPDATE notifications
		SET read = TRUE, read_at = $2, updated_at = $2
		WHERE user_id = $1 AND read = FALSE AND archived = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, userID, readAt)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	marked, err := result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return 0, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return int(marked), total, nil
}

func (r *notificationRepository) Archive(ctx context.Context, id uuid.UUID, archivedAt time.Time) (*model.Notification, error) {
	query := `
		UPDATE notifications
		SET archived = TRUE, archived_at = $2, updated_at = $2
		WHERE id = $1 AND archived = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, id, archivedAt); err != nil {
		return nil, fmt.Errorf("failed to archive notification: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *notificationRepository) RecordOutcome(ctx context.Context, id uuid.UUID, channel model.Channel, outcome model.Outcome, at time.Time) (*model.Notification, error) {
	// Each channel owns its own columns, so outcomes written at different
	// times never interfere. Re-recording overwrites: last outcome wins.
	var query string
	var args []interface{}

	switch channel {
	case model.ChannelEmail:
		query = `UPDATE notifications SET email_sent = $2, email_sent_at = $3, email_error = $4, updated_at = $5 WHERE id = $1`
		args = []interface{}{id, outcome.Sent, sentAt(outcome.Sent, at), outcome.Error, at}
	case model.ChannelPush:
		query = `UPDATE notifications SET push_sent = $2, push_sent_at = $3, push_error = $4, updated_at = $5 WHERE id = $1`
		args = []interface{}{id, outcome.Sent, sentAt(outcome.Sent, at), outcome.Error, at}
	case model.ChannelSMS:
		query = `UPDATE notifications SET sms_sent = $2, sms_sent_at = $3, sms_error = $4, updated_at = $5 WHERE id = $1`
		args = []interface{}{id, outcome.Sent, sentAt(outcome.Sent, at), outcome.Error, at}
	case model.ChannelInApp:
		query = `UPDATE notifications SET in_app_delivered = $2, in_app_delivered_at = $3, updated_at = $4 WHERE id = $1`
		args = []interface{}{id, outcome.Delivered, sentAt(outcome.Delivered, at), at}
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unrecognized channel %q", channel))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to record delivery outcome: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperrors.NotFound("notification", nil)
	}
	return r.Get(ctx, id)
}

func sentAt(sent bool, at time.Time) *time.Time {
	if !sent {
		return nil
	}
	return &at
}

// listConditions builds the WHERE clause shared by List and Stats so the
// aggregates always describe the same filtered set the page was read from.
func listConditions(userID uuid.UUID, filter model.ListFilter) (string, []interface{}) {
	conds := []string{
		"user_id = $1",
		"archived = FALSE",
		"(expires_at IS NULL OR expires_at > NOW())",
	}
	args := []interface{}{userID}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Read != nil {
		args = append(args, *filter.Read)
		conds = append(conds, fmt.Sprintf("read = $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

func (r *notificationRepository) List(ctx context.Context, userID uuid.UUID, filter model.ListFilter) ([]*model.Notification, int, error) {
	where, args := listConditions(userID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	args = append(args, filter.Limit, filter.Skip)
	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, notificationColumns, where, len(args)-1, len(args))

	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	notifications := make([]*model.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, row.toModel())
	}
	return notifications, total, nil
}

func (r *notificationRepository) Stats(ctx context.Context, userID uuid.UUID, filter model.ListFilter) (*model.ListStats, error) {
	where, args := listConditions(userID, filter)

	// One grouped pass; totals and per-type/per-priority counts come out of
	// the same result set.
	query := `
		SELECT type, priority, read, COUNT(*) AS count
		FROM notifications
		WHERE ` + where + `
		GROUP BY type, priority, read
	`

	var groups []struct {
		Type     string `db:"type"`
		Priority string `db:"priority"`
		Read     bool   `db:"read"`
		Count    int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}

	stats := &model.ListStats{
		ByType:     []model.TypeCount{},
		ByPriority: []model.PriorityCount{},
	}
	byType := make(map[model.Type]int)
	byPriority := make(map[model.Priority]int)

	for _, g := range groups {
		stats.Total += g.Count
		if g.Read {
			stats.Read += g.Count
		} else {
			stats.Unread += g.Count
		}
		byType[model.Type(g.Type)] += g.Count
		byPriority[model.Priority(g.Priority)] += g.Count
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
