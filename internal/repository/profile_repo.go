package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"hooka/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository interface {
	Upsert(ctx context.Context, p *model.BriefProfile, ownerID *string) error
	// List returns profiles ordered by name. An empty ownerID lists every row.
	List(ctx context.Context, ownerID string) ([]model.BriefProfile, error)
	// Delete removes the profile if it is unowned or owned by ownerID.
	Delete(ctx context.Context, id string, ownerID *string) error
}

type profileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepo{pool: pool}
}

func (r *profileRepo) Upsert(ctx context.Context, p *model.BriefProfile, ownerID *string) error {
	brief, err := json.Marshal(p.Brief)
	if err != nil {
		return fmt.Errorf("marshal brief: %w", err)
	}
	const q = `
        INSERT INTO hypeakz_profiles (id, name, brief, user_id)
        VALUES ($1, $2, $3::jsonb, $4)
        ON CONFLICT (id) DO UPDATE
        SET name = EXCLUDED.name,
            brief = EXCLUDED.brief,
            user_id = COALESCE(hypeakz_profiles.user_id, EXCLUDED.user_id)
        WHERE hypeakz_profiles.user_id IS NULL
           OR hypeakz_profiles.user_id = EXCLUDED.user_id
    `
	if _, err := r.pool.Exec(ctx, q, p.ID, p.Name, string(brief), ownerID); err != nil {
		return fmt.Errorf("upserting profile %s: %w", p.ID, err)
	}
	return nil
}

func (r *profileRepo) List(ctx context.Context, ownerID string) ([]model.BriefProfile, error) {
	const q = `
        SELECT id, COALESCE(name, ''), brief
        FROM hypeakz_profiles
        WHERE ($1 = '' OR user_id = $1)
        ORDER BY name ASC
    `
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []model.BriefProfile{}
	for rows.Next() {
		var (
			p        model.BriefProfile
			rawBrief []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &rawBrief); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		if err := unmarshalNullable(rawBrief, &p.Brief); err != nil {
			return nil, fmt.Errorf("unmarshal brief for profile %s: %w", p.ID, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *profileRepo) Delete(ctx context.Context, id string, ownerID *string) error {
	const q = `DELETE FROM hypeakz_profiles WHERE id = $1 AND (user_id IS NULL OR user_id = $2)`
	if _, err := r.pool.Exec(ctx, q, id, ownerID); err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	return nil
}
