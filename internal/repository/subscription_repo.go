package repository

import (
	"context"
	"fmt"

	"hooka/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository applies payment provider state to user rows.
type SubscriptionRepository interface {
	// ApplyByUserID updates the user's billing columns and reports whether a row matched.
	ApplyByUserID(ctx context.Context, userID string, u model.BillingUpdate) (bool, error)
	// ApplyBySubscriptionID updates every user linked to the provider subscription.
	ApplyBySubscriptionID(ctx context.Context, subscriptionID string, u model.BillingUpdate) (bool, error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const billingSet = `
        SET unlimited_status = COALESCE($2::boolean, unlimited_status),
            paid = COALESCE($3::boolean, paid),
            stripe_customer_id = COALESCE($4::text, stripe_customer_id),
            stripe_subscription_id = COALESCE($5::text, stripe_subscription_id),
            subscription_status = COALESCE($6::text, subscription_status)
`

func (r *subscriptionRepo) ApplyByUserID(ctx context.Context, userID string, u model.BillingUpdate) (bool, error) {
	q := `UPDATE hypeakz_users` + billingSet + `WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, userID, u.UnlimitedStatus, u.Paid, u.StripeCustomerID, u.StripeSubscriptionID, u.SubscriptionStatus)
	if err != nil {
		return false, fmt.Errorf("applying billing update for user %s: %w", userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionRepo) ApplyBySubscriptionID(ctx context.Context, subscriptionID string, u model.BillingUpdate) (bool, error) {
	q := `UPDATE hypeakz_users` + billingSet + `WHERE stripe_subscription_id = $1`
	tag, err := r.pool.Exec(ctx, q, subscriptionID, u.UnlimitedStatus, u.Paid, u.StripeCustomerID, u.StripeSubscriptionID, u.SubscriptionStatus)
	if err != nil {
		return false, fmt.Errorf("applying billing update for subscription %s: %w", subscriptionID, err)
	}
	return tag.RowsAffected() > 0, nil
}
