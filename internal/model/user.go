package model

import (
	"fmt"
	"unicode/utf16"
)

// UserProfile represents an account row. Billing fields are owned by the
// server and only change through promo redemption, admin toggles and
// payment webhooks.
type UserProfile struct {
	ID                   string  `db:"id" json:"id"`
	Name                 string  `db:"name" json:"name"`
	Brand                string  `db:"brand" json:"brand"`
	Email                string  `db:"email" json:"email"`
	Phone                *string `db:"phone" json:"phone,omitempty"`
	CreatedAt            int64   `db:"created_at" json:"createdAt"`
	EmailVerified        *bool   `db:"-" json:"emailVerified,omitempty"`
	UnlimitedStatus      bool    `db:"unlimited_status" json:"unlimitedStatus"`
	Paid                 bool    `db:"paid" json:"paid"`
	GenerationCount      int     `db:"generation_count" json:"generationCount"`
	StripeCustomerID     *string `db:"stripe_customer_id" json:"-"`
	StripeSubscriptionID *string `db:"stripe_subscription_id" json:"-"`
	SubscriptionStatus   *string `db:"subscription_status" json:"subscriptionStatus,omitempty"`
}

// Subscription statuses written by payment webhooks.
const (
	SubscriptionActive        = "active"
	SubscriptionPaymentFailed = "payment_failed"
	SubscriptionCancelled     = "cancelled"
)

// BillingUpdate is a partial update applied to a user's billing columns.
// Nil fields are left untouched.
type BillingUpdate struct {
	UnlimitedStatus      *bool
	Paid                 *bool
	StripeCustomerID     *string
	StripeSubscriptionID *string
	SubscriptionStatus   *string
}

// StableID derives a deterministic user id from an email address so the
// same identity maps to the same row across sessions and devices.
func StableID(provider, email string) string {
	var hash int32
	for _, u := range utf16.Encode([]rune(email)) {
		hash = (hash << 5) - hash + int32(u)
	}
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("%s-%x", provider, h)
}
