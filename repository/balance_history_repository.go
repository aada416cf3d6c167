package repository

import (
	"context"
	"fmt"

	"chesspot/database"
	"chesspot/domain/entities"

	"github.com/shopspring/decimal"
)

// BalanceHistoryRepository implements the interfaces.BalanceHistoryRepository interface
type BalanceHistoryRepository struct {
	q Queryable
}

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool}
}

// newBalanceHistoryRepository creates a new balance history repository bound to a transaction
func newBalanceHistoryRepository(tx Queryable) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx}
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	query := `
		INSERT INTO balance_history (
			user_id, balance_before, balance_after, change_amount,
			transaction_type, metadata, match_id
		) VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		history.UserID,
		history.BalanceBefore.String(),
		history.BalanceAfter.String(),
		history.ChangeAmount.String(),
		string(history.TransactionType),
		history.Metadata,
		history.MatchID,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record balance history for user %d: %w", history.UserID, err)
	}
	return nil
}

// GetByUser returns balance history for a user, newest first
func (r *BalanceHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.BalanceHistory, error) {
	query := `
		SELECT id, user_id, balance_before::text, balance_after::text,
			change_amount::text, transaction_type, metadata, match_id, created_at
		FROM balance_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var histories []*entities.BalanceHistory
	for rows.Next() {
		var h entities.BalanceHistory
		var before, after, change string
		var txType string
		err := rows.Scan(&h.ID, &h.UserID, &before, &after, &change, &txType, &h.Metadata, &h.MatchID, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}

		if h.BalanceBefore, err = decimal.NewFromString(before); err != nil {
			return nil, fmt.Errorf("failed to parse balance_before %q: %w", before, err)
		}
		if h.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, fmt.Errorf("failed to parse balance_after %q: %w", after, err)
		}
		if h.ChangeAmount, err = decimal.NewFromString(change); err != nil {
			return nil, fmt.Errorf("failed to parse change_amount %q: %w", change, err)
		}
		h.TransactionType = entities.TransactionType(txType)
		histories = append(histories, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balance history: %w", err)
	}
	return histories, nil
}
