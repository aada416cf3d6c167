package repository

import (
	"context"
	"fmt"

	"chesspot/database"
)

// SettlementRepository implements the interfaces.SettlementRepository interface
type SettlementRepository struct {
	q Queryable
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *database.DB) *SettlementRepository {
	return &SettlementRepository{q: db.Pool}
}

// newSettlementRepository creates a new settlement repository bound to a transaction
func newSettlementRepository(tx Queryable) *SettlementRepository {
	return &SettlementRepository{q: tx}
}

// MarkSettled records that a match has been settled. The insert-once
// semantics carry the idempotence guarantee: when the marker already exists
// the caller must not apply any balance deltas.
func (r *SettlementRepository) MarkSettled(ctx context.Context, matchID string) (bool, error) {
	query := `
		INSERT INTO settlements (match_id)
		VALUES ($1)
		ON CONFLICT (match_id) DO NOTHING
	`

	result, err := r.q.Exec(ctx, query, matchID)
	if err != nil {
		return false, fmt.Errorf("failed to mark match %s settled: %w", matchID, err)
	}
	return result.RowsAffected() == 1, nil
}

// IsSettled reports whether a match has already been settled
func (r *SettlementRepository) IsSettled(ctx context.Context, matchID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM settlements WHERE match_id = $1)`

	var settled bool
	if err := r.q.QueryRow(ctx, query, matchID).Scan(&settled); err != nil {
		return false, fmt.Errorf("failed to check settlement for match %s: %w", matchID, err)
	}
	return settled, nil
}
