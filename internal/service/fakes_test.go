package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"hooka/internal/llm"
	"hooka/internal/model"
	"hooka/internal/repository"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.UserProfile
	err   error
}

func newFakeUserRepo(users ...model.UserProfile) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*model.UserProfile{}}
	for i := range users {
		u := users[i]
		r.users[u.ID] = &u
	}
	return r
}

func (r *fakeUserRepo) Upsert(_ context.Context, u *model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) List(context.Context) ([]model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.UserProfile, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), r.err
}

func (r *fakeUserRepo) setFlag(id string, value *bool, field func(*model.UserProfile) *bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	f := field(u)
	if value != nil {
		*f = *value
	} else {
		*f = !*f
	}
	return *f, nil
}

func (r *fakeUserRepo) SetPaid(_ context.Context, id string, value *bool) (bool, error) {
	return r.setFlag(id, value, func(u *model.UserProfile) *bool { return &u.Paid })
}

func (r *fakeUserRepo) SetUnlimited(_ context.Context, id string, value *bool) (bool, error) {
	return r.setFlag(id, value, func(u *model.UserProfile) *bool { return &u.UnlimitedStatus })
}

func (r *fakeUserRepo) IncrementGeneration(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		u = &model.UserProfile{ID: id}
		r.users[id] = u
	}
	u.GenerationCount++
	return u.GenerationCount, nil
}

func (r *fakeUserRepo) grantUnlimited(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		u = &model.UserProfile{ID: id}
		r.users[id] = u
	}
	u.UnlimitedStatus = true
}

type fakeHistoryRepo struct {
	concepts int64
	err      error
}

func (r *fakeHistoryRepo) Upsert(context.Context, *model.HistoryItem, *string) error { return nil }
func (r *fakeHistoryRepo) List(context.Context, string, int) ([]model.HistoryItem, error) {
	return nil, nil
}
func (r *fakeHistoryRepo) CountConcepts(context.Context) (int64, error) { return r.concepts, r.err }

type fakeAnalyticsRepo struct {
	mu     sync.Mutex
	events []model.AnalyticsEvent
	tokens int64
	err    error
}

func (r *fakeAnalyticsRepo) Insert(_ context.Context, e *model.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, *e)
	return nil
}

func (r *fakeAnalyticsRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.events)), r.err
}

func (r *fakeAnalyticsRepo) SumTokens(context.Context) (int64, error) { return r.tokens, r.err }

func (r *fakeAnalyticsRepo) snapshot() []model.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AnalyticsEvent(nil), r.events...)
}

type fakePromoRepo struct {
	mu    sync.Mutex
	codes map[string]*model.PromoCode
	users *fakeUserRepo
}

func newFakePromoRepo(users *fakeUserRepo, codes ...string) *fakePromoRepo {
	r := &fakePromoRepo{codes: map[string]*model.PromoCode{}, users: users}
	for _, c := range codes {
		r.codes[c] = &model.PromoCode{ID: c, Code: c}
	}
	return r
}

func (r *fakePromoRepo) Create(_ context.Context, p *model.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[p.Code]; ok {
		return repository.ErrDuplicateCode
	}
	cp := *p
	r.codes[p.Code] = &cp
	return nil
}

func (r *fakePromoRepo) List(context.Context) ([]model.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PromoCode, 0, len(r.codes))
	for _, p := range r.codes {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePromoRepo) Redeem(_ context.Context, code, userID string, now int64) (*model.PromoCode, error) {
	r.mu.Lock()
	p, ok := r.codes[code]
	if !ok {
		r.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	if p.UsedBy != nil {
		r.mu.Unlock()
		return nil, repository.ErrAlreadyUsed
	}
	p.UsedBy, p.UsedAt = &userID, &now
	cp := *p
	r.mu.Unlock()
	if r.users != nil {
		r.users.grantUnlimited(userID)
	}
	return &cp, nil
}

type fakeSettingsRepo struct {
	mu     sync.Mutex
	values map[string]string
	gets   int
	err    error
}

func (r *fakeSettingsRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.err != nil {
		return "", false, r.err
	}
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *fakeSettingsRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = map[string]string{}
	}
	r.values[key] = value
	return nil
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{items: map[string][]byte{}} }

func (c *fakeCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = b
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

type fakeSubRepo struct {
	byUser []string
	bySub  []string
	last   model.BillingUpdate
	match  bool
}

func (r *fakeSubRepo) ApplyByUserID(_ context.Context, userID string, u model.BillingUpdate) (bool, error) {
	r.byUser = append(r.byUser, userID)
	r.last = u
	return r.match, nil
}

func (r *fakeSubRepo) ApplyBySubscriptionID(_ context.Context, subID string, u model.BillingUpdate) (bool, error) {
	r.bySub = append(r.bySub, subID)
	r.last = u
	return r.match, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	resp     *llm.Response
	err      error
	requests []llm.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func (g *fakeGenerator) lastRequest() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type fakeReader struct {
	text string
	err  error
}

func (r fakeReader) Read(context.Context, string) (string, error) { return r.text, r.err }
