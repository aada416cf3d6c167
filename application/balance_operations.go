package application

import (
	"context"
	"fmt"

	"chesspot/domain/entities"
	"chesspot/domain/events"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// BalanceService handles account lifecycle and direct balance operations
// outside of match settlement.
type BalanceService struct {
	uowFactory      UnitOfWorkFactory
	startingBalance decimal.Decimal
}

// NewBalanceService creates a new balance service
func NewBalanceService(uowFactory UnitOfWorkFactory, startingBalance decimal.Decimal) *BalanceService {
	return &BalanceService{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
	}
}

// EnsureUser returns the user's account, creating it with the starting
// balance when it does not exist yet.
func (s *BalanceService) EnsureUser(ctx context.Context, userID int64, username string) (*entities.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = uow.UserRepository().Create(ctx, userID, username, s.startingBalance)
		if err != nil {
			return nil, err
		}

		err = uow.BalanceHistoryRepository().Record(ctx, &entities.BalanceHistory{
			UserID:          userID,
			BalanceBefore:   decimal.Zero,
			BalanceAfter:    s.startingBalance,
			ChangeAmount:    s.startingBalance,
			TransactionType: entities.TransactionTypeInitial,
		})
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"userID":   userID,
			"username": username,
			"balance":  s.startingBalance,
		}).Info("created new user account")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// GetBalance returns the current balance of a user
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if user == nil {
		return decimal.Zero, entities.ErrUserNotFound
	}
	return user.Balance, nil
}

// Deposit credits an amount to a user's balance
func (s *BalanceService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit amount must be positive")
	}
	return s.apply(ctx, userID, amount, entities.TransactionTypeDeposit)
}

// Withdraw debits an amount from a user's balance. Fails with
// ErrInsufficientBalance when the amount exceeds the current balance.
func (s *BalanceService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("withdrawal amount must be positive")
	}
	return s.apply(ctx, userID, amount.Neg(), entities.TransactionTypeWithdrawal)
}

// History returns the most recent balance history entries for a user
func (s *BalanceService) History(ctx context.Context, userID int64, limit int) ([]*entities.BalanceHistory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.BalanceHistoryRepository().GetByUser(ctx, userID, limit)
}

func (s *BalanceService) apply(ctx context.Context, userID int64, delta decimal.Decimal, txType entities.TransactionType) (decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().LockForUpdate(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if user == nil {
		return decimal.Zero, entities.ErrUserNotFound
	}

	if delta.IsNegative() && user.Balance.Add(delta).IsNegative() {
		return decimal.Zero, entities.ErrInsufficientBalance
	}

	newBalance, err := uow.UserRepository().AdjustBalance(ctx, userID, delta)
	if err != nil {
		return decimal.Zero, err
	}

	err = uow.BalanceHistoryRepository().Record(ctx, &entities.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    newBalance,
		ChangeAmount:    delta,
		TransactionType: txType,
	})
	if err != nil {
		return decimal.Zero, err
	}

	if err := uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      user.Balance.String(),
		NewBalance:      newBalance.String(),
		ChangeAmount:    delta.String(),
		TransactionType: string(txType),
	}); err != nil {
		log.WithError(err).Warn("failed to publish balance change event")
	}

	if err := uow.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return newBalance, nil
}
