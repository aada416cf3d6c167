package application

import (
	"context"

	"chesspot/domain/interfaces"
)

// TransactionalEventPublisher buffers events during a transaction and only
// forwards them after a successful commit.
type TransactionalEventPublisher interface {
	interfaces.EventPublisher

	// Flush publishes all buffered events. Called after commit.
	Flush(ctx context.Context) error

	// Discard drops all buffered events. Called on rollback.
	Discard()
}

// UnitOfWork defines the interface for transactional repository operations.
// Every multi-step transition (escrow-then-create, complete-then-settle) runs
// inside one unit of work so it fully applies or fully rejects.
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes buffered events
	Commit() error

	// Rollback rolls back the transaction and discards buffered events
	Rollback() error

	// Repository getters
	UserRepository() interfaces.UserRepository
	MatchRepository() interfaces.MatchRepository
	BalanceHistoryRepository() interfaces.BalanceHistoryRepository
	SettlementRepository() interfaces.SettlementRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
