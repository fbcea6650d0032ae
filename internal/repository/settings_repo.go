package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository is a small key/value table for admin-tunable values.
type SettingsRepository interface {
	// Get returns ok=false when the key is not set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

type settingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepo{pool: pool}
}

func (r *settingsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value *string
	err := r.pool.QueryRow(ctx, `SELECT value FROM hypeakz_settings WHERE key = $1 LIMIT 1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fetch setting %s: %w", key, err)
	}
	return deref(value), true, nil
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	const q = `
        INSERT INTO hypeakz_settings (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
    `
	if _, err := r.pool.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	return nil
}
