package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"hooka/internal/config"
	"hooka/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// maxWebhookBody bounds the payload read from Stripe.
const maxWebhookBody = 1 << 16

// StripeService manages Stripe integration
type StripeService struct {
	cfg     *config.Config
	subSvc  SubscriptionService
	metrics *metrics.Metrics
	logger  zerolog.Logger

	// newCheckoutSession is swapped in tests.
	newCheckoutSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeService initializes Stripe key and returns service with a scoped logger.
// subSvc may be nil when persistence is disabled; the webhook then refuses events.
func NewStripeService(cfg *config.Config, subSvc SubscriptionService, m *metrics.Metrics, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, subSvc: subSvc, metrics: m, logger: lg, newCheckoutSession: checkoutsession.New}
}

// CreateCheckoutSession creates a subscription Checkout session and returns its URL.
func (s *StripeService) CreateCheckoutSession(_ context.Context, userID, email string) (string, error) {
	if !s.cfg.PaymentsEnabled() {
		return "", ErrPaymentsDisabled
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(s.cfg.StripePriceID), Quantity: stripe.Int64(1)}},
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(s.cfg.StripeReturnURL + "?checkout=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cfg.StripeReturnURL + "?checkout=cancel"),
		Metadata:          map[string]string{"userId": userID},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": userID},
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := s.newCheckoutSession(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Str("session_id", sess.ID).Msg("Checkout session created")
	return sess.URL, nil
}

// HandleWebhook processes Stripe webhook events
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.WebhookEnabled() || s.subSvc == nil {
		s.logger.Error().Msg("Stripe webhook called but payments or database are not configured")
		writeJSONError(w, http.StatusInternalServerError, "Stripe not configured")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		writeJSONError(w, http.StatusBadRequest, "failed to read payload")
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing stripe-signature header")
		return
	}
	event, err := webhook.ConstructEventWithOptions(payload, sig, s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		writeJSONError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Stripe webhook received")

	if err := s.HandleEvent(r.Context(), event); err != nil {
		s.observe(event.Type, "error")
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to process Stripe webhook")
		status := http.StatusInternalServerError
		if errors.Is(err, errInvalidEventData) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}
	s.observe(event.Type, "ok")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

var errInvalidEventData = errors.New("invalid event data")

// HandleEvent applies a verified event to user billing state.
func (s *StripeService) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("%w: checkout.session: %v", errInvalidEventData, err)
		}
		userID := cs.Metadata["userId"]
		if userID == "" {
			userID = cs.ClientReferenceID
		}
		var subID, customerID string
		if cs.Subscription != nil {
			subID = cs.Subscription.ID
		}
		if cs.Customer != nil {
			customerID = cs.Customer.ID
		}
		if userID == "" || subID == "" {
			s.logger.Warn().Str("session_id", cs.ID).Msg("Checkout session without user or subscription, skipping")
			return nil
		}
		return s.subSvc.CompleteCheckout(ctx, userID, customerID, subID)

	case "customer.subscription.updated":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return fmt.Errorf("%w: subscription: %v", errInvalidEventData, err)
		}
		return s.subSvc.SyncStatus(ctx, ss.Metadata["userId"], ss.ID, string(ss.Status))

	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return fmt.Errorf("%w: subscription: %v", errInvalidEventData, err)
		}
		return s.subSvc.Cancel(ctx, ss.Metadata["userId"], ss.ID)

	case "invoice.payment_failed", "invoice.paid":
		subID, err := invoiceSubscriptionID(event.Data.Raw)
		if err != nil {
			return fmt.Errorf("%w: invoice: %v", errInvalidEventData, err)
		}
		if subID == "" {
			s.logger.Info().Str("event_type", string(event.Type)).Msg("Invoice has no subscription, skipping subscription update")
			return nil
		}
		if event.Type == "invoice.paid" {
			return s.subSvc.MarkPaid(ctx, subID)
		}
		return s.subSvc.MarkPaymentFailed(ctx, subID)

	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
		return nil
	}
}

// invoiceSubscriptionID reads the subscription from either the legacy
// top-level field or the parent subscription details of newer API versions.
func invoiceSubscriptionID(raw json.RawMessage) (string, error) {
	var inv struct {
		Subscription json.RawMessage `json:"subscription"`
		Parent       *struct {
			SubscriptionDetails *struct {
				Subscription json.RawMessage `json:"subscription"`
			} `json:"subscription_details"`
		} `json:"parent"`
	}
	if err := json.Unmarshal(raw, &inv); err != nil {
		return "", err
	}
	if id := expandableID(inv.Subscription); id != "" {
		return id, nil
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return expandableID(inv.Parent.SubscriptionDetails.Subscription), nil
	}
	return "", nil
}

// expandableID accepts a Stripe expandable field as either an id string or an object.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func (s *StripeService) observe(t stripe.EventType, status string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(string(t), status).Inc()
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
