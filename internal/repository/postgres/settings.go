package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
)

type settingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

// settingsDocument is the JSONB payload; identity and timestamps live in
// their own columns.
type settingsDocument struct {
	Email         model.ChannelSettings `json:"email"`
	Push          model.ChannelSettings `json:"push"`
	SMS           model.ChannelSettings `json:"sms"`
	InApp         model.ChannelSettings `json:"inApp"`
	Frequency     model.Frequency       `json:"frequency"`
	QuietHours    model.QuietHours      `json:"quietHours"`
	AdminSettings model.AdminSettings   `json:"adminSettings"`
}

type settingsRow struct {
	UserID    uuid.UUID `db:"user_id"`
	Settings  []byte    `db:"settings"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toDocument(s *model.NotificationSettings) settingsDocument {
	return settingsDocument{
		Email:         s.Email,
		Push:          s.Push,
		SMS:           s.SMS,
		InApp:         s.InApp,
		Frequency:     s.Frequency,
		QuietHours:    s.QuietHours,
		AdminSettings: s.AdminSettings,
	}
}

func (r settingsRow) toModel() (*model.NotificationSettings, error) {
	var doc settingsDocument
	if err := json.Unmarshal(r.Settings, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode settings document: %w", err)
	}
	return &model.NotificationSettings{
		UserID:        r.UserID,
		Email:         doc.Email,
		Push:          doc.Push,
		SMS:           doc.SMS,
		InApp:         doc.InApp,
		Frequency:     doc.Frequency,
		QuietHours:    doc.QuietHours,
		AdminSettings: doc.AdminSettings,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func (r *settingsRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, defaults *model.NotificationSettings) (*model.NotificationSettings, error) {
	payload, err := json.Marshal(toDocument(defaults))
	if err != nil {
		return nil, fmt.Errorf("failed to encode default settings: %w", err)
	}

	// Upsert guard: concurrent first reads race to insert, exactly one
	// wins, everyone reads back the same row.
	insert := `
		INSERT INTO notification_settings (user_id, settings, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, userID, payload); err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}

	query := `
		SELECT user_id, settings, created_at, updated_at
		FROM notification_settings
		WHERE user_id = $1
	`
	var row settingsRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("settings row missing after upsert for user %s", userID)
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return row.toModel()
}

func (r *settingsRepository) Save(ctx context.Context, settings *model.NotificationSettings) error {
	payload, err := json.Marshal(toDocument(settings))
	if err != nil {
		return fmt.Errorf("failed to encode settings document: %w", err)
	}

	query := `
		INSERT INTO notification_settings (user_id, settings, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET settings = EXCLUDED.settings, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, settings.UserID, payload); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
