package dto

import "hooka/internal/model"

// IDPayload addresses a single record.
type IDPayload struct {
	ID string `json:"id" validate:"required"`
}

// AdminPayload carries the admin password of gated actions.
type AdminPayload struct {
	Password string `json:"password"`
}

type SavePromptPayload struct {
	Password string `json:"password"`
	Prompt   string `json:"prompt" validate:"max=20000"`
}

// TogglePayload flips a user flag, or sets it when Value is present.
type TogglePayload struct {
	Password string `json:"password"`
	UserID   string `json:"userId" validate:"required"`
	Value    *bool  `json:"value,omitempty"`
}

type GeneratePromoPayload struct {
	Password string `json:"password"`
	Code     string `json:"code,omitempty" validate:"omitempty,max=64"`
}

type ValidatePromoPayload struct {
	Code   string `json:"code" validate:"required,max=64"`
	UserID string `json:"userId"`
}

type UserIDPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type CheckoutPayload struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type ResearchPayload struct {
	URL      string         `json:"url"`
	Language model.Language `json:"language" validate:"omitempty,oneof=DE EN"`
}

type GenerateHooksPayload struct {
	Brief model.MarketingBrief `json:"brief"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type PromptResponse struct {
	Prompt string `json:"prompt"`
}

type ToggleResponse struct {
	Success         bool   `json:"success"`
	UserID          string `json:"userId"`
	Paid            *bool  `json:"paid,omitempty"`
	UnlimitedStatus *bool  `json:"unlimitedStatus,omitempty"`
}

type GenerationCountResponse struct {
	GenerationCount int `json:"generationCount"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the body of every failed action.
type ErrorResponse struct {
	Error string `json:"error"`
}
