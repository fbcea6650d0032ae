package service

import (
	"context"

	"hooka/internal/model"
	"hooka/internal/repository"
)

// DefaultHistoryLimit caps how many history items a listing returns.
const DefaultHistoryLimit = 50

type HistoryService interface {
	// Save upserts the item. ownerID is empty for anonymous callers.
	Save(ctx context.Context, item *model.HistoryItem, ownerID string) error
	List(ctx context.Context, ownerID string) ([]model.HistoryItem, error)
}

type historyService struct {
	repo  repository.HistoryRepository
	limit int
}

func NewHistoryService(repo repository.HistoryRepository, limit int) HistoryService {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &historyService{repo: repo, limit: limit}
}

func (s *historyService) Save(ctx context.Context, item *model.HistoryItem, ownerID string) error {
	return s.repo.Upsert(ctx, item, owner(ownerID))
}

func (s *historyService) List(ctx context.Context, ownerID string) ([]model.HistoryItem, error) {
	return s.repo.List(ctx, ownerID, s.limit)
}

func owner(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
