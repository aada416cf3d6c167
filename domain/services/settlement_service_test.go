package services

import (
	"testing"
	"time"

	"chesspot/domain/entities"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const houseID int64 = 1

func completedMatch(t *testing.T, white, black entities.Participant, wager string, winner *entities.Participant, reason entities.TerminationReason) *entities.Match {
	t.Helper()
	w, err := decimal.NewFromString(wager)
	require.NoError(t, err)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := entities.NewMatch("m1", white, black, w, "fen", 5, now)
	require.True(t, m.Complete(winner, reason, now.Add(time.Minute)))
	return m
}

func TestSettlementService_Compute_VsBot(t *testing.T) {
	svc := NewSettlementService(houseID)
	player := entities.HumanParticipant(100)
	bot := entities.BotParticipant("Boris")

	t.Run("player win pays double the stake and debits the house", func(t *testing.T) {
		m := completedMatch(t, player, bot, "100", &player, entities.TerminationCheckmate)

		s, err := svc.Compute(m)
		require.NoError(t, err)
		require.Len(t, s.Entries, 2)

		playerEntry, ok := s.EntryFor(100)
		require.True(t, ok)
		assert.True(t, playerEntry.Amount.Equal(decimal.NewFromInt(200)), "got %s", playerEntry.Amount)
		assert.Equal(t, entities.TransactionTypeWagerPayout, playerEntry.Type)

		houseEntry, ok := s.EntryFor(houseID)
		require.True(t, ok)
		assert.True(t, houseEntry.Amount.Equal(decimal.NewFromInt(-100)))
		assert.Equal(t, entities.TransactionTypeHousePayout, houseEntry.Type)
	})

	t.Run("player loss moves the escrowed stake to the house", func(t *testing.T) {
		m := completedMatch(t, player, bot, "100", &bot, entities.TerminationCheckmate)

		s, err := svc.Compute(m)
		require.NoError(t, err)
		require.Len(t, s.Entries, 1)

		houseEntry, ok := s.EntryFor(houseID)
		require.True(t, ok)
		assert.True(t, houseEntry.Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, entities.TransactionTypeHouseCollect, houseEntry.Type)
	})

	t.Run("draw refunds exactly the stake", func(t *testing.T) {
		m := completedMatch(t, player, bot, "100", nil, entities.TerminationStalemate)

		s, err := svc.Compute(m)
		require.NoError(t, err)
		require.Len(t, s.Entries, 1)

		playerEntry, ok := s.EntryFor(100)
		require.True(t, ok)
		assert.True(t, playerEntry.Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, entities.TransactionTypeWagerRefund, playerEntry.Type)
	})

	t.Run("fractional stakes settle exactly", func(t *testing.T) {
		m := completedMatch(t, player, bot, "0.1", &player, entities.TerminationCheckmate)

		s, err := svc.Compute(m)
		require.NoError(t, err)

		playerEntry, ok := s.EntryFor(100)
		require.True(t, ok)
		assert.Equal(t, "0.2", playerEntry.Amount.String())

		houseEntry, ok := s.EntryFor(houseID)
		require.True(t, ok)
		assert.Equal(t, "-0.1", houseEntry.Amount.String())
	})

	t.Run("win is zero-sum net of the escrow debit", func(t *testing.T) {
		m := completedMatch(t, player, bot, "37.5", &player, entities.TerminationCheckmate)

		s, err := svc.Compute(m)
		require.NoError(t, err)

		// Player was debited the stake at creation; the total of all
		// settlement entries plus that debit nets to zero.
		net := s.Total().Sub(m.Wager)
		assert.True(t, net.IsZero(), "net %s", net)
	})
}

func TestSettlementService_Compute_HeadToHead(t *testing.T) {
	svc := NewSettlementService(houseID)
	alice := entities.HumanParticipant(100)
	bob := entities.HumanParticipant(200)

	t.Run("winner takes the pot", func(t *testing.T) {
		m := completedMatch(t, alice, bob, "25", &bob, entities.TerminationTimeout)

		s, err := svc.Compute(m)
		require.NoError(t, err)
		require.Len(t, s.Entries, 1)

		winnerEntry, ok := s.EntryFor(200)
		require.True(t, ok)
		assert.True(t, winnerEntry.Amount.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, entities.TransactionTypeWagerPayout, winnerEntry.Type)

		_, ok = s.EntryFor(houseID)
		assert.False(t, ok, "house must not move in head-to-head matches")
	})

	t.Run("draw refunds each side its stake", func(t *testing.T) {
		m := completedMatch(t, alice, bob, "25", nil, entities.TerminationDraw)

		s, err := svc.Compute(m)
		require.NoError(t, err)
		require.Len(t, s.Entries, 2)

		for _, id := range []int64{100, 200} {
			entry, ok := s.EntryFor(id)
			require.True(t, ok)
			assert.True(t, entry.Amount.Equal(decimal.NewFromInt(25)))
			assert.Equal(t, entities.TransactionTypeWagerRefund, entry.Type)
		}
	})
}

func TestSettlementService_Compute_NotCompleted(t *testing.T) {
	svc := NewSettlementService(houseID)
	m := entities.NewMatch("m1", entities.HumanParticipant(100), entities.HumanParticipant(200),
		decimal.NewFromInt(10), "fen", 5, time.Now())

	_, err := svc.Compute(m)
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)
}
