package preference

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository"
	"github.com/roboclub/notification-api/pkg/logger"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Service owns per-user notification settings: lazy default creation,
// deep-merge updates and the eligibility decision the dispatch path asks for
// on every channel.
type Service struct {
	repo   repository.SettingsRepository
	cache  *gocache.Cache
	logger *logger.Logger
}

func NewService(repo repository.SettingsRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  gocache.New(cacheTTL, cacheCleanup),
		logger: logger,
	}
}

// GetSettings returns the user's settings, creating the documented defaults
// on first access. The creation is upsert-guarded in the repository, so
// concurrent first reads converge on one record.
func (s *Service) GetSettings(ctx context.Context, userID uuid.UUID) (*model.NotificationSettings, error) {
	if cached, ok := s.cache.Get(userID.String()); ok {
		return cached.(*model.NotificationSettings), nil
	}

	settings, err := s.repo.GetOrCreate(ctx, userID, model.DefaultSettings(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	s.cache.Set(userID.String(), settings, gocache.DefaultExpiration)
	return settings, nil
}

// UpdateSettings deep-merges the provided leaves into the stored document.
// Unspecified nested fields keep their previous values; a partial channel
// patch never clobbers its sibling toggles.
func (s *Service) UpdateSettings(ctx context.Context, userID uuid.UUID, patch *model.SettingsPatch) (*model.NotificationSettings, error) {
	settings, err := s.repo.GetOrCreate(ctx, userID, model.DefaultSettings(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	patch.ApplyTo(settings)
	settings.UpdatedAt = time.Now()

	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	s.cache.Set(userID.String(), settings, gocache.DefaultExpiration)
	s.logger.Debug("notification settings updated", "user_id", userID.String())
	return settings, nil
}

// IsChannelEligible answers the delivery decision for one channel at one
// instant. It never returns an error; see ChannelEligible.
func (s *Service) IsChannelEligible(settings *model.NotificationSettings, channel model.Channel, notificationType model.Type, at time.Time) bool {
	return ChannelEligible(settings, channel, notificationType, at)
}
