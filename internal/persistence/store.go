// Package persistence is the local-first data layer of the client: every
// write lands in the local store before the cloud is tried, and every cloud
// failure falls back to the local copy.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hooka/internal/action"
	"hooka/internal/api/v1/dto"
	"hooka/internal/background"
	"hooka/internal/client"
	"hooka/internal/localstore"
	"hooka/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Local store keys.
const (
	KeyUser     = "hypeakz_db_user_backup"
	KeyHistory  = "hypeakz_db_history_backup"
	KeyProfiles = "hypeakz_db_profiles_backup"
)

// HistoryCap bounds the locally cached history.
const HistoryCap = 50

// LegacyPromoCode is accepted even when the cloud is unreachable.
const LegacyPromoCode = "hooka007unlim"

// Store composes the local cache and the remote endpoint.
type Store struct {
	local  localstore.Store
	remote client.Caller
	runner *background.Runner
	logger zerolog.Logger
}

func New(local localstore.Store, remote client.Caller, runner *background.Runner, logger zerolog.Logger) *Store {
	return &Store{
		local:  local,
		remote: remote,
		runner: runner,
		logger: logger.With().Str("service", "Persistence").Logger(),
	}
}

// Init asks the backend to create its tables without waiting for it.
func (s *Store) Init() {
	s.detach(action.InitDB, nil)
}

// LogEvent records an analytics event without waiting for it.
func (s *Store) LogEvent(eventName string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now().UnixMilli()
	id := fmt.Sprintf("%d-%s", now, strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	s.detach(action.LogAnalytics, map[string]any{
		"id":        id,
		"eventName": eventName,
		"timestamp": now,
		"metadata":  metadata,
	})
}

func (s *Store) detach(a action.Action, payload any) {
	s.runner.Go(a.String(), func(ctx context.Context) error {
		_, err := s.remote.Call(ctx, a, payload, client.SyncTimeout)
		return err
	})
}

// sync performs a best-effort cloud write. Failures are logged only.
func (s *Store) sync(ctx context.Context, a action.Action, payload any) {
	if _, err := s.remote.Call(ctx, a, payload, client.SyncTimeout); err != nil {
		s.logger.Debug().Err(err).Str("action", a.String()).Msg("Cloud sync skipped")
	}
}

// fetch reads from the cloud; ok is false on any failure or a null result.
func fetch[T any](ctx context.Context, s *Store, a action.Action, payload any) (T, bool) {
	var out T
	raw, err := s.remote.Call(ctx, a, payload, client.SyncTimeout)
	if err != nil {
		s.logger.Debug().Err(err).Str("action", a.String()).Msg("Cloud read failed, using local copy")
		return out, false
	}
	if string(raw) == "null" {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn().Err(err).Str("action", a.String()).Msg("Unreadable cloud result")
		return out, false
	}
	return out, true
}

func readLocal[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var out T
	data, ok := s.local.Get(context.WithoutCancel(ctx), key)
	if !ok || data == "" {
		return out, false
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Corrupt local entry ignored")
		return out, false
	}
	return out, true
}

func (s *Store) writeLocal(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Local encode failed")
		return
	}
	// The local copy is written even when the caller has given up.
	s.local.Set(context.WithoutCancel(ctx), key, string(data))
}

// SaveUser caches user locally, then upserts it in the cloud.
func (s *Store) SaveUser(ctx context.Context, user model.UserProfile) {
	s.writeLocal(ctx, KeyUser, user)
	s.sync(ctx, action.SaveUser, user)
}

// GetUser prefers the cloud copy and refreshes the cache with it. The
// cached user is only returned when it belongs to id.
func (s *Store) GetUser(ctx context.Context, id string) *model.UserProfile {
	if u, ok := fetch[model.UserProfile](ctx, s, action.GetUser, dto.IDPayload{ID: id}); ok && u.ID != "" {
		s.writeLocal(ctx, KeyUser, u)
		return &u
	}
	return s.localUser(ctx, id)
}

func (s *Store) localUser(ctx context.Context, id string) *model.UserProfile {
	u, ok := readLocal[model.UserProfile](ctx, s, KeyUser)
	if !ok || u.ID != id {
		return nil
	}
	return &u
}

// ClearUser evicts the cached user on sign-out.
func (s *Store) ClearUser(ctx context.Context) {
	s.local.Delete(context.WithoutCancel(ctx), KeyUser)
}

// GetHistory returns the cloud history when it is non-empty, replacing the
// cache with it. An empty cloud result counts as unavailable.
func (s *Store) GetHistory(ctx context.Context) []model.HistoryItem {
	return getList[model.HistoryItem](ctx, s, action.GetHistory, KeyHistory)
}

// SaveHistoryItem prepends item to the cache, then upserts it in the cloud.
func (s *Store) SaveHistoryItem(ctx context.Context, item model.HistoryItem) {
	saveList(ctx, s, KeyHistory, item, HistoryCap)
	s.sync(ctx, action.SaveHistory, item)
}

// GetProfiles behaves like GetHistory for brief profiles.
func (s *Store) GetProfiles(ctx context.Context) []model.BriefProfile {
	return getList[model.BriefProfile](ctx, s, action.GetProfiles, KeyProfiles)
}

// SaveProfile prepends profile to the cache, then upserts it in the cloud.
func (s *Store) SaveProfile(ctx context.Context, profile model.BriefProfile) {
	saveList(ctx, s, KeyProfiles, profile, 0)
	s.sync(ctx, action.SaveProfile, profile)
}

// DeleteProfile removes the profile locally, then in the cloud. A failed
// cloud delete is not rolled back.
func (s *Store) DeleteProfile(ctx context.Context, id string) {
	current, _ := readLocal[[]model.BriefProfile](ctx, s, KeyProfiles)
	kept := make([]model.BriefProfile, 0, len(current))
	for _, p := range current {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.writeLocal(ctx, KeyProfiles, kept)
	s.sync(ctx, action.DeleteProfile, dto.IDPayload{ID: id})
}

type identified interface {
	GetID() string
}

func getList[T identified](ctx context.Context, s *Store, a action.Action, key string) []T {
	if items, ok := fetch[[]T](ctx, s, a, nil); ok && len(items) > 0 {
		s.writeLocal(ctx, key, items)
		return items
	}
	items, _ := readLocal[[]T](ctx, s, key)
	if items == nil {
		items = []T{}
	}
	return items
}

// saveList puts item first, drops older entries with the same id and
// truncates to limit when limit is positive.
func saveList[T identified](ctx context.Context, s *Store, key string, item T, limit int) {
	current, _ := readLocal[[]T](ctx, s, key)
	updated := make([]T, 0, len(current)+1)
	updated = append(updated, item)
	for _, it := range current {
		if it.GetID() != item.GetID() {
			updated = append(updated, it)
		}
	}
	if limit > 0 && len(updated) > limit {
		updated = updated[:limit]
	}
	s.writeLocal(ctx, key, updated)
}

// PromoResult is the outcome of a redemption.
type PromoResult struct {
	Valid           bool   `json:"valid"`
	Code            string `json:"code"`
	UnlimitedStatus bool   `json:"unlimitedStatus"`
	Legacy          bool   `json:"legacy,omitempty"`
}

// ErrPromoRejected wraps the server's reason for refusing a code.
var ErrPromoRejected = errors.New("promo code rejected")

// RedeemPromo redeems code for userID and marks the cached user unlimited on
// success. The legacy code is honoured locally when the cloud is down.
func (s *Store) RedeemPromo(ctx context.Context, userID, code string) (PromoResult, error) {
	res, err := client.Decode[PromoResult](ctx, s.remote, action.ValidatePromoCode,
		dto.ValidatePromoPayload{Code: code, UserID: userID}, client.SyncTimeout)
	if err != nil {
		var e *client.Error
		if errors.As(err, &e) && e.Status >= http.StatusBadRequest && e.Status < http.StatusInternalServerError {
			return PromoResult{}, fmt.Errorf("%w: %s", ErrPromoRejected, e.Message)
		}
		if !strings.EqualFold(strings.TrimSpace(code), LegacyPromoCode) {
			return PromoResult{}, err
		}
		s.logger.Info().Msg("Cloud unreachable, accepting legacy promo code locally")
		res = PromoResult{Valid: true, Code: LegacyPromoCode, UnlimitedStatus: true, Legacy: true}
	}
	if res.Valid && res.UnlimitedStatus {
		if u := s.localUser(ctx, userID); u != nil {
			u.UnlimitedStatus = true
			s.writeLocal(ctx, KeyUser, u)
		}
	}
	return res, nil
}

// IncrementGeneration counts one generation for userID. Offline, the
// cached user's counter is advanced instead.
func (s *Store) IncrementGeneration(ctx context.Context, userID string) int {
	if res, ok := fetch[dto.GenerationCountResponse](ctx, s, action.IncrementGeneration, dto.UserIDPayload{UserID: userID}); ok {
		if u := s.localUser(ctx, userID); u != nil {
			u.GenerationCount = res.GenerationCount
			s.writeLocal(ctx, KeyUser, u)
		}
		return res.GenerationCount
	}
	u := s.localUser(ctx, userID)
	if u == nil {
		return 0
	}
	u.GenerationCount++
	s.writeLocal(ctx, KeyUser, u)
	return u.GenerationCount
}

// Checkout starts a payment session and returns its URL. There is no
// local fallback, so failures are returned.
func (s *Store) Checkout(ctx context.Context, userID, email string) (string, error) {
	res, err := client.Decode[dto.CheckoutResponse](ctx, s.remote, action.CreateCheckoutSession,
		dto.CheckoutPayload{UserID: userID, Email: email}, client.LongTimeout)
	if err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", errors.New("checkout returned no URL")
	}
	return res.URL, nil
}
