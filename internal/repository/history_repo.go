package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"hooka/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HistoryRepository interface {
	// Upsert stores the item keyed by id. A row owned by another user is left untouched.
	Upsert(ctx context.Context, item *model.HistoryItem, ownerID *string) error
	// List returns the newest items first. An empty ownerID lists every row.
	List(ctx context.Context, ownerID string, limit int) ([]model.HistoryItem, error)
	// CountConcepts sums the concepts stored across all history rows.
	CountConcepts(ctx context.Context) (int64, error)
}

type historyRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepo{pool: pool}
}

func (r *historyRepo) Upsert(ctx context.Context, item *model.HistoryItem, ownerID *string) error {
	brief, err := json.Marshal(item.Brief)
	if err != nil {
		return fmt.Errorf("marshal brief: %w", err)
	}
	concepts := item.Concepts
	if concepts == nil {
		concepts = []model.ViralConcept{}
	}
	conceptsJSON, err := json.Marshal(concepts)
	if err != nil {
		return fmt.Errorf("marshal concepts: %w", err)
	}
	const q = `
        INSERT INTO hypeakz_history (id, timestamp, brief, concepts, user_id)
        VALUES ($1, $2, $3::jsonb, $4::jsonb, $5)
        ON CONFLICT (id) DO UPDATE
        SET timestamp = EXCLUDED.timestamp,
            brief = EXCLUDED.brief,
            concepts = EXCLUDED.concepts,
            user_id = COALESCE(hypeakz_history.user_id, EXCLUDED.user_id)
        WHERE hypeakz_history.user_id IS NULL
           OR hypeakz_history.user_id = EXCLUDED.user_id
    `
	if _, err := r.pool.Exec(ctx, q, item.ID, item.Timestamp, string(brief), string(conceptsJSON), ownerID); err != nil {
		return fmt.Errorf("upserting history item %s: %w", item.ID, err)
	}
	return nil
}

func (r *historyRepo) List(ctx context.Context, ownerID string, limit int) ([]model.HistoryItem, error) {
	const q = `
        SELECT id, COALESCE(timestamp, 0), brief, concepts
        FROM hypeakz_history
        WHERE ($1 = '' OR user_id = $1)
        ORDER BY timestamp DESC NULLS LAST
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	items := []model.HistoryItem{}
	for rows.Next() {
		var (
			h                     model.HistoryItem
			rawBrief, rawConcepts []byte
		)
		if err := rows.Scan(&h.ID, &h.Timestamp, &rawBrief, &rawConcepts); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := unmarshalNullable(rawBrief, &h.Brief); err != nil {
			return nil, fmt.Errorf("unmarshal brief for history %s: %w", h.ID, err)
		}
		if err := unmarshalNullable(rawConcepts, &h.Concepts); err != nil {
			return nil, fmt.Errorf("unmarshal concepts for history %s: %w", h.ID, err)
		}
		if h.Concepts == nil {
			h.Concepts = []model.ViralConcept{}
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

func (r *historyRepo) CountConcepts(ctx context.Context) (int64, error) {
	const q = `
        SELECT COALESCE(SUM(jsonb_array_length(concepts)), 0)
        FROM hypeakz_history
        WHERE jsonb_typeof(concepts) = 'array'
    `
	var n int64
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count concepts: %w", err)
	}
	return n, nil
}

func unmarshalNullable(raw []byte, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
