package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hooka/internal/action"
	"hooka/internal/api/v1/dto"
	"hooka/internal/database"
	"hooka/internal/metrics"
	"hooka/internal/middleware"
	"hooka/internal/model"
	"hooka/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// maxEnvelopeBytes bounds a single RPC body.
const maxEnvelopeBytes = 1 << 20

// Services are the collaborators of the dispatcher. The persistence-backed
// services are nil when no database is configured.
type Services struct {
	Schema    *database.Schema
	Users     service.UserService
	History   service.HistoryService
	Profiles  service.ProfileService
	Analytics service.AnalyticsService
	Settings  service.SettingsService
	Promos    service.PromoService
	Admin     service.AdminService
	Content   service.ContentService
	Stripe    *service.StripeService
}

// statusError carries the HTTP status an action failure maps to.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

var (
	errConfiguration    = &statusError{http.StatusInternalServerError, "Configuration Error"}
	errInvalidJSON      = &statusError{http.StatusBadRequest, "Invalid JSON"}
	errUnknownAction    = &statusError{http.StatusBadRequest, "Unknown Action"}
	errRejectedToken    = &statusError{http.StatusUnauthorized, "Invalid identity token"}
	errForbidden        = &statusError{http.StatusForbidden, "Forbidden"}
	errDatabaseDisabled = &statusError{http.StatusServiceUnavailable, "Database not configured"}
	errWebhookEndpoint  = &statusError{http.StatusBadRequest, "Stripe events must be sent to /api/stripe-webhook"}
	errPromoUserID      = &statusError{http.StatusBadRequest, "userId is required"}
)

// call is one decoded RPC invocation.
type call struct {
	payload json.RawMessage
	// uid is the verified caller, empty when anonymous.
	uid string
}

// owns rejects payloads that name a different user than the verified caller.
func (c *call) owns(id string) error {
	if c.uid != "" && id != "" && id != c.uid {
		return errForbidden
	}
	return nil
}

type actionFunc func(ctx context.Context, c *call) (any, error)

// Dispatcher serves the single-endpoint RPC API.
type Dispatcher struct {
	svc       Services
	aiEnabled bool
	validate  *validator.Validate
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	handlers  map[action.Action]actionFunc
}

func NewDispatcher(svc Services, aiEnabled bool, v *validator.Validate, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		svc:       svc,
		aiEnabled: aiEnabled,
		validate:  v,
		metrics:   m,
		logger:    logger.With().Str("handler", "Dispatcher").Logger(),
	}
	d.handlers = map[action.Action]actionFunc{
		action.InitDB:                d.initDB,
		action.LogAnalytics:          d.logAnalytics,
		action.SaveUser:              d.saveUser,
		action.GetUser:               d.getUser,
		action.SaveHistory:           d.saveHistory,
		action.GetHistory:            d.getHistory,
		action.SaveProfile:           d.saveProfile,
		action.GetProfiles:           d.getProfiles,
		action.DeleteProfile:         d.deleteProfile,
		action.VerifyAdmin:           d.verifyAdmin,
		action.GetAdminStats:         d.getAdminStats,
		action.GetAdminPrompt:        d.getAdminPrompt,
		action.SaveAdminPrompt:       d.saveAdminPrompt,
		action.AdminGetUsers:         d.adminGetUsers,
		action.AdminTogglePaid:       d.adminTogglePaid,
		action.AdminToggleUnlimited:  d.adminToggleUnlimited,
		action.AdminGeneratePromo:    d.adminGeneratePromo,
		action.AdminGetPromoCodes:    d.adminGetPromoCodes,
		action.ValidatePromoCode:     d.validatePromoCode,
		action.IncrementGeneration:   d.incrementGeneration,
		action.CreateCheckoutSession: d.createCheckoutSession,
		action.StripeWebhook:         d.stripeWebhook,
		action.Research:              d.research,
		action.GenerateHooks:         d.generateHooks,
	}
	return d
}

func (d *Dispatcher) dbEnabled() bool { return d.svc.Users != nil }

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !d.aiEnabled && !d.dbEnabled() {
		d.logger.Error().Msg("Neither AI key nor database configured")
		d.writeError(w, "", errConfiguration, start)
		return
	}

	var env action.Envelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEnvelopeBytes)).Decode(&env); err != nil {
		d.writeError(w, "", errInvalidJSON, start)
		return
	}
	a, err := action.Parse(env.Action)
	if err != nil {
		d.logger.Warn().Str("action", env.Action).Msg("Unknown action")
		d.writeError(w, "", errUnknownAction, start)
		return
	}
	middleware.SetAction(r.Context(), string(a))

	result, err := d.dispatch(r.Context(), a, env.Payload)
	if err != nil {
		d.writeError(w, a, err, start)
		return
	}
	d.writeJSON(w, a, http.StatusOK, result, start)
}

// dispatch runs one action with the caller identity carried by ctx.
func (d *Dispatcher) dispatch(ctx context.Context, a action.Action, payload json.RawMessage) (any, error) {
	if a.UserScoped() && middleware.TokenRejected(ctx) {
		return nil, errRejectedToken
	}
	if a.RequiresAdmin() {
		var p dto.AdminPayload
		_ = json.Unmarshal(payload, &p)
		if err := d.svc.Admin.Authorize(p.Password); err != nil {
			return nil, err
		}
	}
	// A failed table init is retried by the next call; repository errors
	// surface per action.
	if a.NeedsTables() && d.svc.Schema != nil {
		if err := d.svc.Schema.Ensure(ctx); err != nil {
			d.logger.Warn().Err(err).Str("action", string(a)).Msg("Table init failed, continuing")
		}
	}

	c := &call{payload: payload}
	c.uid, _ = middleware.UserID(ctx)
	return d.handlers[a](ctx, c)
}

// decode unmarshals and validates an action payload. A missing payload
// decodes to the zero value.
func decode[T any](d *Dispatcher, raw json.RawMessage) (T, error) {
	var v T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, &statusError{http.StatusBadRequest, "Invalid payload: " + err.Error()}
		}
	}
	if err := d.validate.Struct(&v); err != nil {
		return v, &statusError{http.StatusBadRequest, "Validation failed: " + err.Error()}
	}
	return v, nil
}

var success = dto.SuccessResponse{Success: true}

func (d *Dispatcher) initDB(ctx context.Context, c *call) (any, error) {
	return success, nil
}

func (d *Dispatcher) logAnalytics(ctx context.Context, c *call) (any, error) {
	e, err := decode[model.AnalyticsEvent](d, c.payload)
	if err != nil {
		return nil, err
	}
	if d.svc.Analytics == nil {
		return success, nil
	}
	if err := d.svc.Analytics.Record(ctx, &e); err != nil {
		return nil, err
	}
	return success, nil
}

func (d *Dispatcher) saveUser(ctx context.Context, c *call) (any, error) {
	u, err := decode[model.UserProfile](d, c.payload)
	if err != nil {
		return nil, err
	}
	if err := c.owns(u.ID); err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return success, nil
	}
	if err := d.svc.Users.Save(ctx, &u); err != nil {
		return nil, err
	}
	return success, nil
}

func (d *Dispatcher) getUser(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.IDPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if err := c.owns(p.ID); err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return nil, nil
	}
	u, err := d.svc.Users.Get(ctx, p.ID)
	if errors.Is(err, service.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Dispatcher) saveHistory(ctx context.Context, c *call) (any, error) {
	item, err := decode[model.HistoryItem](d, c.payload)
	if err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return success, nil
	}
	if err := d.svc.History.Save(ctx, &item, c.uid); err != nil {
		return nil, err
	}
	return success, nil
}

func (d *Dispatcher) getHistory(ctx context.Context, c *call) (any, error) {
	if !d.dbEnabled() {
		return []model.HistoryItem{}, nil
	}
	items, err := d.svc.History.List(ctx, c.uid)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.HistoryItem{}
	}
	return items, nil
}

func (d *Dispatcher) saveProfile(ctx context.Context, c *call) (any, error) {
	p, err := decode[model.BriefProfile](d, c.payload)
	if err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return success, nil
	}
	if err := d.svc.Profiles.Save(ctx, &p, c.uid); err != nil {
		return nil, err
	}
	return success, nil
}

func (d *Dispatcher) getProfiles(ctx context.Context, c *call) (any, error) {
	if !d.dbEnabled() {
		return []model.BriefProfile{}, nil
	}
	profiles, err := d.svc.Profiles.List(ctx, c.uid)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []model.BriefProfile{}
	}
	return profiles, nil
}

func (d *Dispatcher) deleteProfile(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.IDPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return success, nil
	}
	if err := d.svc.Profiles.Delete(ctx, p.ID, c.uid); err != nil {
		return nil, err
	}
	return success, nil
}

func (d *Dispatcher) verifyAdmin(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.AdminPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	return dto.SuccessResponse{Success: d.svc.Admin.Verify(ctx, p.Password)}, nil
}

func (d *Dispatcher) getAdminStats(ctx context.Context, c *call) (any, error) {
	return d.svc.Admin.Stats(ctx), nil
}

func (d *Dispatcher) getAdminPrompt(ctx context.Context, c *call) (any, error) {
	if d.svc.Settings == nil {
		return dto.PromptResponse{}, nil
	}
	prompt, err := d.svc.Settings.SystemPrompt(ctx)
	if err != nil {
		return nil, err
	}
	return dto.PromptResponse{Prompt: prompt}, nil
}

func (d *Dispatcher) saveAdminPrompt(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.SavePromptPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if d.svc.Settings == nil {
		return nil, service.ErrNoDatabase
	}
	if err := d.svc.Settings.SaveSystemPrompt(ctx, p.Prompt); err != nil {
		return nil, err
	}
	return success, nil
}

func (d *Dispatcher) adminGetUsers(ctx context.Context, c *call) (any, error) {
	if !d.dbEnabled() {
		return []model.UserProfile{}, nil
	}
	users, err := d.svc.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.UserProfile{}
	}
	return users, nil
}

func (d *Dispatcher) adminTogglePaid(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.TogglePayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return nil, errDatabaseDisabled
	}
	paid, err := d.svc.Users.TogglePaid(ctx, p.UserID, p.Value)
	if err != nil {
		return nil, err
	}
	return dto.ToggleResponse{Success: true, UserID: p.UserID, Paid: &paid}, nil
}

func (d *Dispatcher) adminToggleUnlimited(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.TogglePayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return nil, errDatabaseDisabled
	}
	unlimited, err := d.svc.Users.ToggleUnlimited(ctx, p.UserID, p.Value)
	if err != nil {
		return nil, err
	}
	return dto.ToggleResponse{Success: true, UserID: p.UserID, UnlimitedStatus: &unlimited}, nil
}

func (d *Dispatcher) adminGeneratePromo(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.GeneratePromoPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return nil, errDatabaseDisabled
	}
	return d.svc.Promos.Generate(ctx, p.Code)
}

func (d *Dispatcher) adminGetPromoCodes(ctx context.Context, c *call) (any, error) {
	codes, err := d.svc.Promos.List(ctx)
	if err != nil {
		return nil, err
	}
	if codes == nil {
		codes = []model.PromoCode{}
	}
	return codes, nil
}

func (d *Dispatcher) validatePromoCode(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.ValidatePromoPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if err := c.owns(p.UserID); err != nil {
		return nil, err
	}
	userID := p.UserID
	if userID == "" {
		userID = c.uid
	}
	legacy := strings.EqualFold(strings.TrimSpace(p.Code), service.LegacyPromoCode)
	if userID == "" && !legacy {
		return nil, errPromoUserID
	}
	return d.svc.Promos.Redeem(ctx, p.Code, userID)
}

func (d *Dispatcher) incrementGeneration(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.UserIDPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if err := c.owns(p.UserID); err != nil {
		return nil, err
	}
	if !d.dbEnabled() {
		return dto.GenerationCountResponse{}, nil
	}
	n, err := d.svc.Users.IncrementGeneration(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return dto.GenerationCountResponse{GenerationCount: n}, nil
}

func (d *Dispatcher) createCheckoutSession(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.CheckoutPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if err := c.owns(p.UserID); err != nil {
		return nil, err
	}
	if d.svc.Stripe == nil {
		return nil, service.ErrPaymentsDisabled
	}
	url, err := d.svc.Stripe.CreateCheckoutSession(ctx, p.UserID, p.Email)
	if err != nil {
		return nil, err
	}
	return dto.CheckoutResponse{URL: url}, nil
}

func (d *Dispatcher) stripeWebhook(ctx context.Context, c *call) (any, error) {
	return nil, errWebhookEndpoint
}

func (d *Dispatcher) research(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.ResearchPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if d.svc.Content == nil {
		return nil, service.ErrMissingAPIKey
	}
	return d.svc.Content.Research(ctx, p.URL, p.Language)
}

func (d *Dispatcher) generateHooks(ctx context.Context, c *call) (any, error) {
	p, err := decode[dto.GenerateHooksPayload](d, c.payload)
	if err != nil {
		return nil, err
	}
	if d.svc.Content == nil {
		return nil, service.ErrMissingAPIKey
	}
	return d.svc.Content.GenerateHooks(ctx, p.Brief)
}

// statusFor maps an action error to its HTTP status.
func statusFor(err error) int {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.Is(err, service.ErrURLRequired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrPromoInvalid), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPromoAlreadyUsed), errors.Is(err, service.ErrPromoExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentsDisabled), errors.Is(err, service.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (d *Dispatcher) writeError(w http.ResponseWriter, a action.Action, err error, start time.Time) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		d.logger.Error().Err(err).Str("action", string(a)).Msg("Action failed")
	} else {
		d.logger.Debug().Err(err).Str("action", string(a)).Int("status", status).Msg("Action rejected")
	}
	d.writeJSON(w, a, status, dto.ErrorResponse{Error: err.Error()}, start)
}

func (d *Dispatcher) writeJSON(w http.ResponseWriter, a action.Action, status int, body any, start time.Time) {
	if d.metrics != nil {
		label := string(a)
		if label == "" {
			label = "invalid"
		}
		d.metrics.ActionRequests.WithLabelValues(label, strconv.Itoa(status)).Inc()
		d.metrics.ActionLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		d.logger.Error().Err(err).Str("action", string(a)).Msg("Failed to encode response")
	}
}
