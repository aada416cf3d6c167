package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceHistory records a single balance mutation for audit purposes.
// Every settlement delta, escrow debit, deposit and withdrawal produces one row.
type BalanceHistory struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	ChangeAmount    decimal.Decimal `db:"change_amount"`
	TransactionType TransactionType `db:"transaction_type"`
	Metadata        map[string]any  `db:"metadata"`
	MatchID         *string         `db:"match_id"`
	CreatedAt       time.Time       `db:"created_at"`
}
