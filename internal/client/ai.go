package client

import (
	"context"
	"errors"
	"strings"

	"hooka/internal/action"
	"hooka/internal/api/v1/dto"
	"hooka/internal/model"
)

// Typed failures of the AI and admin calls, meant for direct display.
var (
	ErrMissingAPIKey         = errors.New("MISSING_API_KEY")
	ErrInvalidProviderOpenAI = errors.New("INVALID_PROVIDER_OPENAI")
	ErrTimeout               = errors.New("TIMEOUT: Der Server hat zu lange gebraucht. Bitte versuche es erneut.")
)

// AI wraps the generation and admin actions. Unlike Client.Call it raises
// typed errors instead of handing back the transport sentinel.
type AI struct {
	c *Client
}

func NewAI(c *Client) *AI {
	return &AI{c: c}
}

func aiCall[T any](ctx context.Context, ai *AI, a action.Action, payload any) (T, error) {
	out, err := Decode[T](ctx, ai.c, a, payload, LongTimeout)
	if err != nil {
		return out, classify(err)
	}
	return out, nil
}

func classify(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	switch {
	case e.Timeout:
		return ErrTimeout
	case strings.Contains(e.Message, "Missing API Key"):
		return ErrMissingAPIKey
	case strings.Contains(e.Message, ErrInvalidProviderOpenAI.Error()):
		return ErrInvalidProviderOpenAI
	}
	return e
}

// Research drafts a brief from a landing page.
func (ai *AI) Research(ctx context.Context, url string, lang model.Language) (*model.ResearchResult, error) {
	res, err := aiCall[model.ResearchResult](ctx, ai, action.Research, dto.ResearchPayload{URL: url, Language: lang})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GenerateHooks returns concepts for brief. The reported scores are always
// the brief's target scores, whatever the server sent.
func (ai *AI) GenerateHooks(ctx context.Context, brief model.MarketingBrief) ([]model.ViralConcept, error) {
	concepts, err := aiCall[[]model.ViralConcept](ctx, ai, action.GenerateHooks, dto.GenerateHooksPayload{Brief: brief})
	if err != nil {
		return nil, err
	}
	target := brief.Scores()
	for i := range concepts {
		concepts[i].Scores = target
	}
	if concepts == nil {
		concepts = []model.ViralConcept{}
	}
	return concepts, nil
}

func (ai *AI) VerifyAdmin(ctx context.Context, password string) (bool, error) {
	res, err := aiCall[dto.SuccessResponse](ctx, ai, action.VerifyAdmin, dto.AdminPayload{Password: password})
	return res.Success, err
}

func (ai *AI) AdminStats(ctx context.Context, password string) (model.AdminStats, error) {
	return aiCall[model.AdminStats](ctx, ai, action.GetAdminStats, dto.AdminPayload{Password: password})
}

func (ai *AI) AdminPrompt(ctx context.Context) (string, error) {
	res, err := aiCall[dto.PromptResponse](ctx, ai, action.GetAdminPrompt, nil)
	return res.Prompt, err
}

func (ai *AI) SaveAdminPrompt(ctx context.Context, password, prompt string) error {
	_, err := aiCall[dto.SuccessResponse](ctx, ai, action.SaveAdminPrompt, dto.SavePromptPayload{Password: password, Prompt: prompt})
	return err
}

func (ai *AI) AdminUsers(ctx context.Context, password string) ([]model.UserProfile, error) {
	return aiCall[[]model.UserProfile](ctx, ai, action.AdminGetUsers, dto.AdminPayload{Password: password})
}

// TogglePaid flips the paid flag, or sets it when value is non-nil.
func (ai *AI) TogglePaid(ctx context.Context, password, userID string, value *bool) (dto.ToggleResponse, error) {
	return aiCall[dto.ToggleResponse](ctx, ai, action.AdminTogglePaid, dto.TogglePayload{Password: password, UserID: userID, Value: value})
}

// ToggleUnlimited flips the unlimited flag, or sets it when value is non-nil.
func (ai *AI) ToggleUnlimited(ctx context.Context, password, userID string, value *bool) (dto.ToggleResponse, error) {
	return aiCall[dto.ToggleResponse](ctx, ai, action.AdminToggleUnlimited, dto.TogglePayload{Password: password, UserID: userID, Value: value})
}

func (ai *AI) GeneratePromo(ctx context.Context, password, code string) (model.PromoCode, error) {
	return aiCall[model.PromoCode](ctx, ai, action.AdminGeneratePromo, dto.GeneratePromoPayload{Password: password, Code: code})
}

func (ai *AI) PromoCodes(ctx context.Context, password string) ([]model.PromoCode, error) {
	return aiCall[[]model.PromoCode](ctx, ai, action.AdminGetPromoCodes, dto.AdminPayload{Password: password})
}
