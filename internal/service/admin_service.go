package service

import (
	"context"
	"crypto/subtle"
	"time"

	"hooka/internal/model"
	"hooka/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// verifyDelay slows down password checks from the login form.
const verifyDelay = 300 * time.Millisecond

type AdminService interface {
	// Verify reports whether password matches, after a fixed delay.
	Verify(ctx context.Context, password string) bool
	// Authorize returns ErrUnauthorized unless password matches.
	Authorize(password string) error
	// Stats summarizes usage. Query failures yield zero counts.
	Stats(ctx context.Context) model.AdminStats
}

// StatsRepos are the tables the admin dashboard aggregates. Any may be nil
// when persistence is disabled.
type StatsRepos struct {
	Users     repository.UserRepository
	History   repository.HistoryRepository
	Analytics repository.AnalyticsRepository
}

type adminService struct {
	password string
	repos    StatsRepos
	delay    time.Duration
	logger   zerolog.Logger
}

func NewAdminService(password string, repos StatsRepos, logger zerolog.Logger) AdminService {
	return &adminService{
		password: password,
		repos:    repos,
		delay:    verifyDelay,
		logger:   logger.With().Str("service", "AdminService").Logger(),
	}
}

func (s *adminService) matches(password string) bool {
	// No configured password disables the admin surface entirely.
	if s.password == "" || password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
}

func (s *adminService) Verify(ctx context.Context, password string) bool {
	ok := s.matches(password)
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	if !ok {
		s.logger.Warn().Msg("Admin verification failed")
	}
	return ok
}

func (s *adminService) Authorize(password string) error {
	if !s.matches(password) {
		s.logger.Warn().Msg("Rejected admin action")
		return ErrUnauthorized
	}
	return nil
}

func (s *adminService) Stats(ctx context.Context) model.AdminStats {
	var stats model.AdminStats
	if s.repos.Users == nil || s.repos.History == nil || s.repos.Analytics == nil {
		return stats
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.UserCount, err = s.repos.Users.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.HistoryCount, err = s.repos.History.CountConcepts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.APICalls, err = s.repos.Analytics.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TokenCount, err = s.repos.Analytics.SumTokens(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute admin stats")
		return model.AdminStats{}
	}
	return stats
}
