package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"hooka/internal/model"
	"hooka/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LegacyPromoCode is always valid and is not tracked in the promo table.
const LegacyPromoCode = "hooka007unlim"

// RedeemResult is returned after a successful redemption.
type RedeemResult struct {
	Valid           bool   `json:"valid"`
	Code            string `json:"code"`
	UnlimitedStatus bool   `json:"unlimitedStatus"`
	Legacy          bool   `json:"legacy,omitempty"`
}

type PromoService interface {
	Redeem(ctx context.Context, code, userID string) (*RedeemResult, error)
	// Generate creates a code; an empty code gets a random one.
	Generate(ctx context.Context, code string) (*model.PromoCode, error)
	List(ctx context.Context) ([]model.PromoCode, error)
}

type promoService struct {
	promos repository.PromoRepository
	users  repository.UserRepository
	now    func() time.Time
	logger zerolog.Logger
}

// NewPromoService creates the service. Both repositories may be nil when
// persistence is disabled, in which case only the legacy code is accepted.
func NewPromoService(promos repository.PromoRepository, users repository.UserRepository, logger zerolog.Logger) PromoService {
	return &promoService{
		promos: promos,
		users:  users,
		now:    time.Now,
		logger: logger.With().Str("service", "PromoService").Logger(),
	}
}

// NormalizeCode upper-cases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *promoService) Redeem(ctx context.Context, code, userID string) (*RedeemResult, error) {
	if strings.EqualFold(strings.TrimSpace(code), LegacyPromoCode) {
		return s.redeemLegacy(ctx, userID)
	}
	if s.promos == nil {
		return nil, ErrPromoInvalid
	}

	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, ErrPromoInvalid
	}
	p, err := s.promos.Redeem(ctx, normalized, userID, s.now().UnixMilli())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrPromoInvalid
	case errors.Is(err, repository.ErrAlreadyUsed):
		s.logger.Warn().Str("code", normalized).Str("user_id", userID).Msg("Promo code reuse rejected")
		return nil, ErrPromoAlreadyUsed
	case err != nil:
		return nil, err
	}
	s.logger.Info().Str("code", p.Code).Str("user_id", userID).Msg("Promo code redeemed")
	return &RedeemResult{Valid: true, Code: p.Code, UnlimitedStatus: true}, nil
}

func (s *promoService) redeemLegacy(ctx context.Context, userID string) (*RedeemResult, error) {
	if s.users != nil && userID != "" {
		unlimited := true
		if _, err := s.users.SetUnlimited(ctx, userID, &unlimited); err != nil {
			// The client keeps the flag locally and syncs it once the user row exists.
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			s.logger.Warn().Str("user_id", userID).Msg("Legacy promo redeemed before user was synced")
		}
	}
	return &RedeemResult{Valid: true, Code: LegacyPromoCode, UnlimitedStatus: true, Legacy: true}, nil
}

func (s *promoService) Generate(ctx context.Context, code string) (*model.PromoCode, error) {
	if s.promos == nil {
		return nil, ErrNoDatabase
	}
	code = NormalizeCode(code)
	if code == "" {
		code = "HOOKA-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}
	p := &model.PromoCode{ID: uuid.NewString(), Code: code, CreatedAt: s.now().UnixMilli()}
	if err := s.promos.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, ErrPromoExists
		}
		return nil, err
	}
	s.logger.Info().Str("code", p.Code).Msg("Promo code generated")
	return p, nil
}

func (s *promoService) List(ctx context.Context) ([]model.PromoCode, error) {
	if s.promos == nil {
		return []model.PromoCode{}, nil
	}
	return s.promos.List(ctx)
}
