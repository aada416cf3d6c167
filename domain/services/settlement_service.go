package services

import (
	"errors"
	"fmt"

	"chesspot/domain/entities"
)

// SettlementService contains pure business logic for computing the balance
// deltas owed after a match completes. It never touches storage; the
// application layer applies the entries inside one transaction.
type SettlementService struct {
	houseAccountID int64
}

// NewSettlementService creates a new SettlementService. houseAccountID is the
// reserved account that funds and absorbs payouts for automated-opponent
// matches.
func NewSettlementService(houseAccountID int64) *SettlementService {
	return &SettlementService{houseAccountID: houseAccountID}
}

// Compute derives the settlement for a completed match.
//
// Automated-opponent matches (the stake was escrowed from the human at
// creation):
//   - player won:  player +2x wager, house -wager
//   - player lost: house +wager, no player movement (the escrow stands)
//   - draw:        player +wager, no house movement
//
// Net of the escrow debit, player and house always move zero-sum.
//
// Human-vs-human matches escrow both stakes at creation; the winner takes the
// pot (+2x wager) and a draw refunds each side its stake. No house movement.
func (s *SettlementService) Compute(match *entities.Match) (*entities.WagerSettlement, error) {
	if !match.IsCompleted() {
		return nil, fmt.Errorf("match %s is not completed: %w", match.ID, entities.ErrInvalidTransition)
	}

	settlement := &entities.WagerSettlement{MatchID: match.ID}

	if match.VsBot {
		player, ok := match.HumanPlayer()
		if !ok {
			return nil, errors.New("automated-opponent match has no human player")
		}
		switch {
		case match.Winner == nil:
			// Draw: return exactly the stake, house untouched.
			settlement.Entries = append(settlement.Entries, entities.SettlementEntry{
				AccountID: player.UserID,
				Amount:    match.Wager,
				Type:      entities.TransactionTypeWagerRefund,
			})
		case match.Winner.Equal(player):
			settlement.Entries = append(settlement.Entries,
				entities.SettlementEntry{
					AccountID: player.UserID,
					Amount:    match.Wager.Mul(two),
					Type:      entities.TransactionTypeWagerPayout,
				},
				entities.SettlementEntry{
					AccountID: s.houseAccountID,
					Amount:    match.Wager.Neg(),
					Type:      entities.TransactionTypeHousePayout,
				})
		default:
			// The escrowed stake becomes the house's win.
			settlement.Entries = append(settlement.Entries, entities.SettlementEntry{
				AccountID: s.houseAccountID,
				Amount:    match.Wager,
				Type:      entities.TransactionTypeHouseCollect,
			})
		}
		return settlement, nil
	}

	// Human vs human: both stakes are in the pot.
	if match.Winner == nil {
		for _, p := range []entities.Participant{match.White, match.Black} {
			settlement.Entries = append(settlement.Entries, entities.SettlementEntry{
				AccountID: p.UserID,
				Amount:    match.Wager,
				Type:      entities.TransactionTypeWagerRefund,
			})
		}
		return settlement, nil
	}

	settlement.Entries = append(settlement.Entries, entities.SettlementEntry{
		AccountID: match.Winner.UserID,
		Amount:    match.Wager.Mul(two),
		Type:      entities.TransactionTypeWagerPayout,
	})
	return settlement, nil
}
