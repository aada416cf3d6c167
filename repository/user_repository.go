package repository

import (
	"context"
	"fmt"

	"chesspot/database"
	"chesspot/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository implements the interfaces.UserRepository interface
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepository creates a new user repository bound to a transaction
func newUserRepository(tx Queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	query := `
		SELECT id, username, balance::text, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(ctx, query, id)
}

// LockForUpdate retrieves a user by id, holding a row lock for the duration
// of the surrounding transaction.
func (r *UserRepository) LockForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	query := `
		SELECT id, username, balance::text, created_at, updated_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`
	return r.scanUser(ctx, query, id)
}

// Create creates a new user with the initial balance
func (r *UserRepository) Create(ctx context.Context, id int64, username string, initialBalance decimal.Decimal) (*entities.User, error) {
	query := `
		INSERT INTO users (id, username, balance)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, username, balance::text, created_at, updated_at
	`

	user, err := r.scanUserRow(r.q.QueryRow(ctx, query, id, username, initialBalance.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to create user %d: %w", id, err)
	}
	return user, nil
}

// AdjustBalance applies a signed delta to a user's balance and returns the
// new balance. The delta form is deliberate: concurrent settlements and
// deposits must not overwrite each other's updates.
func (r *UserRepository) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET balance = balance + $1::numeric, updated_at = NOW()
		WHERE id = $2
		RETURNING balance::text
	`

	var balanceStr string
	err := r.q.QueryRow(ctx, query, delta.String(), id).Scan(&balanceStr)
	if err == pgx.ErrNoRows {
		return decimal.Zero, fmt.Errorf("user %d: %w", id, entities.ErrUserNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust balance for user %d: %w", id, err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q for user %d: %w", balanceStr, id, err)
	}
	return balance, nil
}

func (r *UserRepository) scanUser(ctx context.Context, query string, id int64) (*entities.User, error) {
	user, err := r.scanUserRow(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

func (r *UserRepository) scanUserRow(row pgx.Row) (*entities.User, error) {
	var user entities.User
	var balanceStr string
	if err := row.Scan(&user.ID, &user.Username, &balanceStr, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	user.Balance = balance
	return &user, nil
}
