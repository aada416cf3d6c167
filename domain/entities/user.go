package entities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a player account with its ledger balance. The repository
// owns the authoritative balance; this struct is a snapshot.
type User struct {
	ID        int64           `db:"id"`
	Username  string          `db:"username"`
	Balance   decimal.Decimal `db:"balance"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// CanAfford checks if the user has sufficient balance for an amount.
func (u *User) CanAfford(amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

// ValidateStake checks that an amount is a valid stake for this user:
// strictly positive and affordable.
func (u *User) ValidateStake(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if !u.CanAfford(amount) {
		return ErrInsufficientBalance
	}
	return nil
}
