package model

// HistoryItem is one generation run together with the brief that produced it.
type HistoryItem struct {
	ID        string         `db:"id" json:"id" validate:"required"`
	Timestamp int64          `db:"timestamp" json:"timestamp"`
	Concepts  []ViralConcept `db:"concepts" json:"concepts"`
	Brief     MarketingBrief `db:"brief" json:"brief"`
}

// BriefProfile is a named, reusable brief template.
type BriefProfile struct {
	ID    string         `db:"id" json:"id" validate:"required"`
	Name  string         `db:"name" json:"name"`
	Brief MarketingBrief `db:"brief" json:"brief"`
}

// GetID lets list entities share de-duplication helpers.
func (h HistoryItem) GetID() string { return h.ID }

// GetID lets list entities share de-duplication helpers.
func (p BriefProfile) GetID() string { return p.ID }
