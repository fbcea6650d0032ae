package service

import (
	"context"
	"time"

	"hooka/internal/repository"

	"github.com/rs/zerolog"
)

const (
	SettingSystemPrompt = "system_prompt"

	promptCacheKey = "settings:" + SettingSystemPrompt
	promptCacheTTL = 10 * time.Minute
)

// JSONCache is the subset of the Redis cache the settings service needs.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type SettingsService interface {
	// SystemPrompt returns the admin tuning text, empty when unset.
	SystemPrompt(ctx context.Context) (string, error)
	SaveSystemPrompt(ctx context.Context, prompt string) error
}

type settingsService struct {
	repo   repository.SettingsRepository
	cache  JSONCache
	logger zerolog.Logger
}

// NewSettingsService creates the service. cache may be nil.
func NewSettingsService(repo repository.SettingsRepository, cache JSONCache, logger zerolog.Logger) SettingsService {
	return &settingsService{repo: repo, cache: cache, logger: logger.With().Str("service", "SettingsService").Logger()}
}

func (s *settingsService) SystemPrompt(ctx context.Context) (string, error) {
	if s.cache != nil {
		var cached string
		ok, err := s.cache.GetJSON(ctx, promptCacheKey, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Prompt cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	prompt, _, err := s.repo.Get(ctx, SettingSystemPrompt)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, promptCacheKey, prompt, promptCacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("Prompt cache write failed")
		}
	}
	return prompt, nil
}

func (s *settingsService) SaveSystemPrompt(ctx context.Context, prompt string) error {
	if err := s.repo.Set(ctx, SettingSystemPrompt, prompt); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, promptCacheKey); err != nil {
			s.logger.Warn().Err(err).Msg("Prompt cache invalidation failed")
		}
	}
	s.logger.Info().Int("length", len(prompt)).Msg("System prompt updated")
	return nil
}
