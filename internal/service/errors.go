package service

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUnauthorized     = errors.New("Unauthorized")
	ErrNoDatabase       = errors.New("No Database")
	ErrMissingAPIKey    = errors.New("Missing API Key")
	ErrURLRequired      = errors.New("URL Required")
	ErrPromoInvalid     = errors.New("invalid promo code")
	ErrPromoAlreadyUsed = errors.New("promo code already used")
	ErrPromoExists      = errors.New("promo code already exists")
	ErrPaymentsDisabled = errors.New("payments are not configured")
)
