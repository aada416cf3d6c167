package interfaces

import (
	"context"

	"chesspot/domain/entities"
	"chesspot/domain/events"

	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for account data access.
// Balances are only ever mutated through relative deltas so that a settlement
// and an unrelated deposit or withdrawal can interleave without lost updates.
type UserRepository interface {
	// GetByID retrieves a user by id. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// LockForUpdate retrieves a user by id, locking the row for the duration
	// of the surrounding transaction. Returns (nil, nil) when absent.
	LockForUpdate(ctx context.Context, id int64) (*entities.User, error)

	// Create creates a new user with the initial balance.
	Create(ctx context.Context, id int64, username string, initialBalance decimal.Decimal) (*entities.User, error)

	// AdjustBalance applies a signed delta to a user's balance and returns
	// the new balance.
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error)
}

// MatchRepository defines the interface for match data access
type MatchRepository interface {
	// Create persists a newly created match.
	Create(ctx context.Context, match *entities.Match) error

	// GetByID retrieves a match by its id. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*entities.Match, error)

	// Update persists the mutable portion of a match: position, turn,
	// history, status, winner, reason, clock snapshot.
	Update(ctx context.Context, match *entities.Match) error

	// GetActiveByUser returns all active matches a user participates in.
	GetActiveByUser(ctx context.Context, userID int64) ([]*entities.Match, error)

	// GetActive returns all matches persisted as active, oldest first.
	GetActive(ctx context.Context) ([]*entities.Match, error)
}

// BalanceHistoryRepository defines the interface for balance audit records
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry.
	Record(ctx context.Context, history *entities.BalanceHistory) error

	// GetByUser returns balance history for a user, newest first.
	GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.BalanceHistory, error)
}

// SettlementRepository persists the settled marker that makes settlement
// idempotent per match id.
type SettlementRepository interface {
	// MarkSettled records that a match has been settled. Returns false when
	// the marker already existed, in which case no deltas may be applied.
	MarkSettled(ctx context.Context, matchID string) (bool, error)

	// IsSettled reports whether a match has already been settled.
	IsSettled(ctx context.Context, matchID string) (bool, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
