package repository

import (
	"context"
	"fmt"

	"hooka/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalyticsRepository interface {
	// Insert stores the event; a duplicate id overwrites the previous row.
	Insert(ctx context.Context, e *model.AnalyticsEvent) error
	Count(ctx context.Context) (int64, error)
	// SumTokens totals the tokens recorded by cost events.
	SumTokens(ctx context.Context) (int64, error)
}

type analyticsRepo struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepo(pool *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepo{pool: pool}
}

func (r *analyticsRepo) Insert(ctx context.Context, e *model.AnalyticsEvent) error {
	var metadata *string
	if len(e.Metadata) > 0 {
		s := string(e.Metadata)
		metadata = &s
	}
	const q = `
        INSERT INTO hypeakz_analytics (id, event_name, timestamp, metadata)
        VALUES ($1, $2, $3, $4::jsonb)
        ON CONFLICT (id) DO UPDATE
        SET event_name = EXCLUDED.event_name,
            timestamp = EXCLUDED.timestamp,
            metadata = EXCLUDED.metadata
    `
	if _, err := r.pool.Exec(ctx, q, e.ID, e.EventName, e.Timestamp, metadata); err != nil {
		return fmt.Errorf("inserting analytics event %s: %w", e.EventName, err)
	}
	return nil
}

func (r *analyticsRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM hypeakz_analytics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count analytics: %w", err)
	}
	return n, nil
}

func (r *analyticsRepo) SumTokens(ctx context.Context) (int64, error) {
	const q = `
        SELECT COALESCE(SUM((metadata->>'tokens')::bigint), 0)
        FROM hypeakz_analytics
        WHERE event_name = $1
    `
	var n int64
	if err := r.pool.QueryRow(ctx, q, model.EventAICost).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum tokens: %w", err)
	}
	return n, nil
}
