package entities

import "github.com/shopspring/decimal"

// SettlementEntry is one signed balance delta produced by settling a match.
type SettlementEntry struct {
	AccountID int64
	Amount    decimal.Decimal
	Type      TransactionType
}

// WagerSettlement is the ephemeral result of settling one completed match.
// It is computed once, applied once (guarded by a persisted settled marker),
// and never stored as its own entity.
type WagerSettlement struct {
	MatchID string
	Entries []SettlementEntry
}

// EntryFor returns the entry for an account, if any.
func (s *WagerSettlement) EntryFor(accountID int64) (SettlementEntry, bool) {
	for _, e := range s.Entries {
		if e.AccountID == accountID {
			return e, true
		}
	}
	return SettlementEntry{}, false
}

// Total returns the sum of all deltas in the settlement.
func (s *WagerSettlement) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.Entries {
		total = total.Add(e.Amount)
	}
	return total
}
