package entities

// TransactionType represents the type of balance change.
type TransactionType string

// All transaction types supported by the system
const (
	// Match settlement transactions
	TransactionTypeWagerEscrow TransactionType = "wager_escrow" // stake debited at match creation
	TransactionTypeWagerPayout TransactionType = "wager_payout" // winner receives stake plus winnings
	TransactionTypeWagerRefund TransactionType = "wager_refund" // stake returned on a draw

	// House counterparty transactions (automated-opponent matches)
	TransactionTypeHousePayout  TransactionType = "house_payout"
	TransactionTypeHouseCollect TransactionType = "house_collect"

	// Account transactions
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeInitial    TransactionType = "initial"
)

// IsMatchRelated returns true if the transaction type stems from a match.
func (tt TransactionType) IsMatchRelated() bool {
	switch tt {
	case TransactionTypeWagerEscrow, TransactionTypeWagerPayout, TransactionTypeWagerRefund,
		TransactionTypeHousePayout, TransactionTypeHouseCollect:
		return true
	}
	return false
}

// IsHouseType returns true if the transaction type moves the house account.
func (tt TransactionType) IsHouseType() bool {
	return tt == TransactionTypeHousePayout || tt == TransactionTypeHouseCollect
}

// IsCredit returns true if the transaction type increases a balance.
func (tt TransactionType) IsCredit() bool {
	switch tt {
	case TransactionTypeWagerPayout, TransactionTypeWagerRefund,
		TransactionTypeHouseCollect, TransactionTypeDeposit, TransactionTypeInitial:
		return true
	}
	return false
}

// String returns the string representation of the transaction type.
func (tt TransactionType) String() string {
	return string(tt)
}
