package repository

import (
	"context"
	"errors"
	"fmt"

	"framium/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines methods for accessing user profiles.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateProfile(ctx context.Context, id, name, avatarURL string) (*model.User, error)
	// UpdatePlan sets the user's plan tier. Only the billing webhook handler
	// calls this.
	UpdatePlan(ctx context.Context, id, plan string) error
	UpdateStripeCustomerID(ctx context.Context, id, customerID string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `user_id, name, email, avatar_url, plan, stripe_customer_id, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.AvatarURL, &u.Plan, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	const q = `
        INSERT INTO user_profiles (user_id, name, email, avatar_url, plan)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + userColumns
	created, err := scanUser(r.pool.QueryRow(ctx, q, u.UserID, u.Name, u.Email, u.AvatarURL, u.Plan))
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.UserID, err)
	}
	*u = *created
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM user_profiles WHERE user_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM user_profiles WHERE stripe_customer_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetching user by stripe customer %s: %w", customerID, err)
	}
	return u, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id, name, avatarURL string) (*model.User, error) {
	const q = `
        UPDATE user_profiles
        SET name = COALESCE(NULLIF($2, ''), name),
            avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
            updated_at = NOW()
        WHERE user_id = $1
        RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, id, name, avatarURL))
	if err != nil {
		return nil, fmt.Errorf("updating profile for user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) UpdatePlan(ctx context.Context, id, plan string) error {
	const q = `UPDATE user_profiles SET plan = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.pool.Exec(ctx, q, id, plan); err != nil {
		return fmt.Errorf("updating plan for user %s: %w", id, err)
	}
	return nil
}

func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, id, customerID string) error {
	const q = `UPDATE user_profiles SET stripe_customer_id = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.pool.Exec(ctx, q, id, customerID); err != nil {
		return fmt.Errorf("updating stripe customer id for user %s: %w", id, err)
	}
	return nil
}
