package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hooka/internal/background"
	"hooka/internal/model"
	"hooka/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventSink receives a copy of every recorded event.
type EventSink interface {
	PublishEvent(ctx context.Context, e *model.AnalyticsEvent) error
}

type AnalyticsService interface {
	// Record stores the event, filling in id and timestamp when absent.
	Record(ctx context.Context, e *model.AnalyticsEvent) error
	// RecordCost stores the token usage of one generation.
	RecordCost(ctx context.Context, tokens int, modelName string) error
}

type analyticsService struct {
	repo   repository.AnalyticsRepository
	sink   EventSink
	runner *background.Runner
	now    func() time.Time
	logger zerolog.Logger
}

// NewAnalyticsService creates the service. sink may be nil. With a runner,
// events are forwarded to the sink without waiting for the publish.
func NewAnalyticsService(repo repository.AnalyticsRepository, sink EventSink, runner *background.Runner, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		repo:   repo,
		sink:   sink,
		runner: runner,
		now:    time.Now,
		logger: logger.With().Str("service", "AnalyticsService").Logger(),
	}
}

func (s *analyticsService) Record(ctx context.Context, e *model.AnalyticsEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = s.now().UnixMilli()
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return err
	}
	if s.sink == nil {
		return nil
	}
	if s.runner == nil {
		s.forward(ctx, e)
		return nil
	}
	ev := *e
	s.runner.Go("analytics-publish", func(ctx context.Context) error {
		s.forward(ctx, &ev)
		return nil
	})
	return nil
}

func (s *analyticsService) forward(ctx context.Context, e *model.AnalyticsEvent) {
	if err := s.sink.PublishEvent(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event", e.EventName).Msg("Failed to forward analytics event")
	}
}

func (s *analyticsService) RecordCost(ctx context.Context, tokens int, modelName string) error {
	meta, err := json.Marshal(map[string]any{"tokens": tokens, "model": modelName})
	if err != nil {
		return fmt.Errorf("marshal cost metadata: %w", err)
	}
	return s.Record(ctx, &model.AnalyticsEvent{EventName: model.EventAICost, Metadata: meta})
}
