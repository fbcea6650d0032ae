package service

import (
	"context"
	"errors"

	"hooka/internal/model"
	"hooka/internal/repository"

	"github.com/rs/zerolog"
)

type UserService interface {
	// Save upserts the profile fields. Payloads without id or name are ignored.
	Save(ctx context.Context, u *model.UserProfile) error
	Get(ctx context.Context, id string) (*model.UserProfile, error)
	List(ctx context.Context) ([]model.UserProfile, error)
	TogglePaid(ctx context.Context, id string, value *bool) (bool, error)
	ToggleUnlimited(ctx context.Context, id string, value *bool) (bool, error)
	IncrementGeneration(ctx context.Context, id string) (int, error)
}

type userService struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, logger zerolog.Logger) UserService {
	return &userService{userRepo: userRepo, logger: logger.With().Str("service", "UserService").Logger()}
}

func (s *userService) Save(ctx context.Context, u *model.UserProfile) error {
	if u.ID == "" || u.Name == "" {
		s.logger.Debug().Str("user_id", u.ID).Msg("Skipping save of incomplete user")
		return nil
	}
	return s.userRepo.Upsert(ctx, u)
}

func (s *userService) Get(ctx context.Context, id string) (*model.UserProfile, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *userService) List(ctx context.Context) ([]model.UserProfile, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) TogglePaid(ctx context.Context, id string, value *bool) (bool, error) {
	paid, err := s.userRepo.SetPaid(ctx, id, value)
	if errors.Is(err, repository.ErrNotFound) {
		return false, ErrUserNotFound
	}
	if err == nil {
		s.logger.Info().Str("user_id", id).Bool("paid", paid).Msg("Paid flag changed by admin")
	}
	return paid, err
}

func (s *userService) ToggleUnlimited(ctx context.Context, id string, value *bool) (bool, error) {
	unlimited, err := s.userRepo.SetUnlimited(ctx, id, value)
	if errors.Is(err, repository.ErrNotFound) {
		return false, ErrUserNotFound
	}
	if err == nil {
		s.logger.Info().Str("user_id", id).Bool("unlimited", unlimited).Msg("Unlimited flag changed by admin")
	}
	return unlimited, err
}

func (s *userService) IncrementGeneration(ctx context.Context, id string) (int, error) {
	return s.userRepo.IncrementGeneration(ctx, id)
}
