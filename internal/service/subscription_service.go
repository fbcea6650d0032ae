package service

import (
	"context"

	"hooka/internal/model"
	"hooka/internal/repository"

	"github.com/rs/zerolog"
)

// SubscriptionService maps payment provider events onto user billing state.
// Events are applied in arrival order; a late event can overwrite a newer one.
type SubscriptionService interface {
	CompleteCheckout(ctx context.Context, userID, customerID, subscriptionID string) error
	SyncStatus(ctx context.Context, userID, subscriptionID, status string) error
	Cancel(ctx context.Context, userID, subscriptionID string) error
	MarkPaymentFailed(ctx context.Context, subscriptionID string) error
	MarkPaid(ctx context.Context, subscriptionID string) error
}

type subscriptionService struct {
	repo   repository.SubscriptionRepository
	logger zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:   repo,
		logger: logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func ptr[T any](v T) *T { return &v }

func (s *subscriptionService) CompleteCheckout(ctx context.Context, userID, customerID, subscriptionID string) error {
	u := model.BillingUpdate{
		UnlimitedStatus:      ptr(true),
		Paid:                 ptr(true),
		StripeSubscriptionID: ptr(subscriptionID),
		SubscriptionStatus:   ptr(model.SubscriptionActive),
	}
	if customerID != "" {
		u.StripeCustomerID = ptr(customerID)
	}
	ok, err := s.repo.ApplyByUserID(ctx, userID, u)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to upgrade user after checkout")
		return err
	}
	s.logMatch(ok, "user_id", userID, "checkout.session.completed")
	return nil
}

func (s *subscriptionService) SyncStatus(ctx context.Context, userID, subscriptionID, status string) error {
	active := status == "active" || status == "trialing"
	return s.apply(ctx, userID, subscriptionID, model.BillingUpdate{
		UnlimitedStatus:    ptr(active),
		Paid:               ptr(active),
		SubscriptionStatus: ptr(status),
	}, "customer.subscription.updated")
}

func (s *subscriptionService) Cancel(ctx context.Context, userID, subscriptionID string) error {
	return s.apply(ctx, userID, subscriptionID, model.BillingUpdate{
		UnlimitedStatus:    ptr(false),
		Paid:               ptr(false),
		SubscriptionStatus: ptr(model.SubscriptionCancelled),
	}, "customer.subscription.deleted")
}

func (s *subscriptionService) MarkPaymentFailed(ctx context.Context, subscriptionID string) error {
	return s.apply(ctx, "", subscriptionID, model.BillingUpdate{
		SubscriptionStatus: ptr(model.SubscriptionPaymentFailed),
	}, "invoice.payment_failed")
}

func (s *subscriptionService) MarkPaid(ctx context.Context, subscriptionID string) error {
	return s.apply(ctx, "", subscriptionID, model.BillingUpdate{
		UnlimitedStatus:    ptr(true),
		Paid:               ptr(true),
		SubscriptionStatus: ptr(model.SubscriptionActive),
	}, "invoice.paid")
}

// apply targets the user id when known, otherwise every user linked to the subscription.
func (s *subscriptionService) apply(ctx context.Context, userID, subscriptionID string, u model.BillingUpdate, event string) error {
	var (
		ok  bool
		err error
	)
	switch {
	case userID != "":
		ok, err = s.repo.ApplyByUserID(ctx, userID, u)
		s.logMatch(ok, "user_id", userID, event)
	case subscriptionID != "":
		ok, err = s.repo.ApplyBySubscriptionID(ctx, subscriptionID, u)
		s.logMatch(ok, "subscription_id", subscriptionID, event)
	default:
		s.logger.Warn().Str("event", event).Msg("Event carries neither user nor subscription id")
		return nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("event", event).Msg("Failed to apply billing update")
	}
	return err
}

func (s *subscriptionService) logMatch(ok bool, key, value, event string) {
	if ok {
		s.logger.Info().Str(key, value).Str("event", event).Msg("Billing state updated")
		return
	}
	s.logger.Warn().Str(key, value).Str("event", event).Msg("No user matched billing update")
}
