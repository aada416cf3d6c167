package testutil

import (
	"time"

	"chesspot/domain/entities"

	"github.com/shopspring/decimal"
)

const startingPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// CreateTestUser builds a user entity with a default balance of 1000.
// The caller persists it via the user repository.
func CreateTestUser(id int64, username string) *entities.User {
	return &entities.User{
		ID:       id,
		Username: username,
		Balance:  decimal.NewFromInt(1000),
	}
}

// CreateTestMatch builds an active human-vs-human match at the starting
// position with a 10 unit wager and a 5 minute time control.
func CreateTestMatch(id string, whiteUserID, blackUserID int64) *entities.Match {
	return entities.NewMatch(
		id,
		entities.HumanParticipant(whiteUserID),
		entities.HumanParticipant(blackUserID),
		decimal.NewFromInt(10),
		startingPosition,
		5,
		time.Now().UTC(),
	)
}

// CreateTestBotMatch builds an active match between a user (white) and an
// automated opponent (black).
func CreateTestBotMatch(id string, userID int64, botName string) *entities.Match {
	return entities.NewMatch(
		id,
		entities.HumanParticipant(userID),
		entities.BotParticipant(botName),
		decimal.NewFromInt(10),
		startingPosition,
		5,
		time.Now().UTC(),
	)
}

// CreateTestBalanceHistory builds a history entry for a 10 unit debit.
func CreateTestBalanceHistory(userID int64, txType entities.TransactionType) *entities.BalanceHistory {
	return &entities.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   decimal.NewFromInt(1000),
		BalanceAfter:    decimal.NewFromInt(990),
		ChangeAmount:    decimal.NewFromInt(-10),
		TransactionType: txType,
	}
}
