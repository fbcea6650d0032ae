package service

import (
	"context"

	"hooka/internal/model"
	"hooka/internal/repository"
)

type ProfileService interface {
	Save(ctx context.Context, p *model.BriefProfile, ownerID string) error
	List(ctx context.Context, ownerID string) ([]model.BriefProfile, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type profileService struct {
	repo repository.ProfileRepository
}

func NewProfileService(repo repository.ProfileRepository) ProfileService {
	return &profileService{repo: repo}
}

func (s *profileService) Save(ctx context.Context, p *model.BriefProfile, ownerID string) error {
	return s.repo.Upsert(ctx, p, owner(ownerID))
}

func (s *profileService) List(ctx context.Context, ownerID string) ([]model.BriefProfile, error) {
	return s.repo.List(ctx, ownerID)
}

func (s *profileService) Delete(ctx context.Context, id, ownerID string) error {
	return s.repo.Delete(ctx, id, owner(ownerID))
}
