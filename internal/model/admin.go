package model

import "encoding/json"

// PromoCode is a single-use code redeemable for unlimited status.
type PromoCode struct {
	ID        string  `db:"id" json:"id"`
	Code      string  `db:"code" json:"code"`
	CreatedAt int64   `db:"created_at" json:"createdAt"`
	UsedBy    *string `db:"used_by" json:"usedBy,omitempty"`
	UsedAt    *int64  `db:"used_at" json:"usedAt,omitempty"`
}

// AnalyticsEvent is an append-only usage record.
type AnalyticsEvent struct {
	ID        string          `db:"id" json:"id"`
	EventName string          `db:"event_name" json:"eventName" validate:"required"`
	Timestamp int64           `db:"timestamp" json:"timestamp"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
}

// EventAICost is logged after every generation with the consumed tokens.
const EventAICost = "ai_cost"

// AdminStats summarizes usage for the admin console.
type AdminStats struct {
	UserCount    int64 `json:"userCount"`
	HistoryCount int64 `json:"historyCount"`
	APICalls     int64 `json:"apiCalls"`
	TokenCount   int64 `json:"tokenCount"`
}
