package repository

import (
	"context"
	"errors"
	"fmt"

	"hooka/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateCode is returned when a promo code already exists.
var ErrDuplicateCode = errors.New("duplicate_code")

type PromoRepository interface {
	Create(ctx context.Context, p *model.PromoCode) error
	List(ctx context.Context) ([]model.PromoCode, error)
	// Redeem claims the code for userID and grants unlimited status in one
	// transaction. It returns ErrNotFound for unknown codes and
	// ErrAlreadyUsed when the code was claimed before.
	Redeem(ctx context.Context, code, userID string, now int64) (*model.PromoCode, error)
}

type promoRepo struct {
	pool *pgxpool.Pool
}

func NewPromoRepo(pool *pgxpool.Pool) PromoRepository {
	return &promoRepo{pool: pool}
}

func (r *promoRepo) Create(ctx context.Context, p *model.PromoCode) error {
	const q = `INSERT INTO hypeakz_promo_codes (id, code, created_at) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, q, p.ID, p.Code, p.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("creating promo code: %w", err)
	}
	return nil
}

func (r *promoRepo) List(ctx context.Context) ([]model.PromoCode, error) {
	const q = `
        SELECT id, code, COALESCE(created_at, 0), used_by, used_at
        FROM hypeakz_promo_codes
        ORDER BY created_at DESC NULLS LAST
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}
	defer rows.Close()

	codes := []model.PromoCode{}
	for rows.Next() {
		var p model.PromoCode
		if err := rows.Scan(&p.ID, &p.Code, &p.CreatedAt, &p.UsedBy, &p.UsedAt); err != nil {
			return nil, fmt.Errorf("scan promo code: %w", err)
		}
		codes = append(codes, p)
	}
	return codes, rows.Err()
}

func (r *promoRepo) Redeem(ctx context.Context, code, userID string, now int64) (*model.PromoCode, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for promo redemption: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The conditional update is the claim: only one concurrent caller can
	// move used_by from NULL to a value.
	const claimQ = `
        UPDATE hypeakz_promo_codes
        SET used_by = $2, used_at = $3
        WHERE code = $1 AND used_by IS NULL
        RETURNING id, code, COALESCE(created_at, 0), used_by, used_at
    `
	var p model.PromoCode
	err = tx.QueryRow(ctx, claimQ, code, userID, now).Scan(&p.ID, &p.Code, &p.CreatedAt, &p.UsedBy, &p.UsedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("claiming promo code: %w", err)
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM hypeakz_promo_codes WHERE code = $1)`, code).Scan(&exists); err != nil {
			return nil, fmt.Errorf("checking promo code: %w", err)
		}
		if exists {
			return nil, ErrAlreadyUsed
		}
		return nil, ErrNotFound
	}

	const grantQ = `
        INSERT INTO hypeakz_users (id, unlimited_status) VALUES ($1, TRUE)
        ON CONFLICT (id) DO UPDATE SET unlimited_status = TRUE
    `
	if _, err := tx.Exec(ctx, grantQ, userID); err != nil {
		return nil, fmt.Errorf("granting unlimited status to user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing promo redemption: %w", err)
	}
	return &p, nil
}
