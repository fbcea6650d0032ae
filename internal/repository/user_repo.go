package repository

import (
	"context"
	"errors"
	"fmt"

	"hooka/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	// Upsert writes the profile columns. Billing columns are never touched.
	Upsert(ctx context.Context, u *model.UserProfile) error
	// GetByID returns nil, nil when the user does not exist.
	GetByID(ctx context.Context, id string) (*model.UserProfile, error)
	List(ctx context.Context) ([]model.UserProfile, error)
	Count(ctx context.Context) (int64, error)
	// SetPaid sets the flag, or flips it when value is nil, and returns the new value.
	SetPaid(ctx context.Context, id string, value *bool) (bool, error)
	SetUnlimited(ctx context.Context, id string, value *bool) (bool, error)
	IncrementGeneration(ctx context.Context, id string) (int, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `id, name, brand, email, phone, created_at, unlimited_status, paid,
        generation_count, stripe_customer_id, stripe_subscription_id, subscription_status`

func scanUser(row pgx.Row) (*model.UserProfile, error) {
	var (
		u                 model.UserProfile
		name, brand, mail *string
		createdAt         *int64
	)
	err := row.Scan(&u.ID, &name, &brand, &mail, &u.Phone, &createdAt, &u.UnlimitedStatus, &u.Paid,
		&u.GenerationCount, &u.StripeCustomerID, &u.StripeSubscriptionID, &u.SubscriptionStatus)
	if err != nil {
		return nil, err
	}
	u.Name, u.Brand, u.Email = deref(name), deref(brand), deref(mail)
	if createdAt != nil {
		u.CreatedAt = *createdAt
	}
	return &u, nil
}

func (r *userRepo) Upsert(ctx context.Context, u *model.UserProfile) error {
	const q = `
        INSERT INTO hypeakz_users (id, name, brand, email, phone, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE
        SET name = EXCLUDED.name,
            brand = EXCLUDED.brand,
            email = EXCLUDED.email,
            phone = EXCLUDED.phone
    `
	if _, err := r.pool.Exec(ctx, q, u.ID, u.Name, u.Brand, u.Email, u.Phone, u.CreatedAt); err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.UserProfile, error) {
	q := `SELECT ` + userColumns + ` FROM hypeakz_users WHERE id = $1 LIMIT 1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context) ([]model.UserProfile, error) {
	q := `SELECT ` + userColumns + ` FROM hypeakz_users ORDER BY created_at DESC NULLS LAST`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.UserProfile{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM hypeakz_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *userRepo) SetPaid(ctx context.Context, id string, value *bool) (bool, error) {
	const q = `
        UPDATE hypeakz_users
        SET paid = COALESCE($2::boolean, NOT paid)
        WHERE id = $1
        RETURNING paid
    `
	return r.setFlag(ctx, q, id, value)
}

func (r *userRepo) SetUnlimited(ctx context.Context, id string, value *bool) (bool, error) {
	const q = `
        UPDATE hypeakz_users
        SET unlimited_status = COALESCE($2::boolean, NOT unlimited_status)
        WHERE id = $1
        RETURNING unlimited_status
    `
	return r.setFlag(ctx, q, id, value)
}

func (r *userRepo) setFlag(ctx context.Context, q, id string, value *bool) (bool, error) {
	var out bool
	if err := r.pool.QueryRow(ctx, q, id, value).Scan(&out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("update flag for user %s: %w", id, err)
	}
	return out, nil
}

func (r *userRepo) IncrementGeneration(ctx context.Context, id string) (int, error) {
	const q = `
        INSERT INTO hypeakz_users (id, generation_count)
        VALUES ($1, 1)
        ON CONFLICT (id) DO UPDATE
        SET generation_count = hypeakz_users.generation_count + 1
        RETURNING generation_count
    `
	var n int
	if err := r.pool.QueryRow(ctx, q, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("increment generation count for user %s: %w", id, err)
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
