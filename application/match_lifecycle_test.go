package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"chesspot/domain/entities"
	"chesspot/domain/events"
	"chesspot/domain/interfaces"
	"chesspot/domain/services"
	"chesspot/domain/testhelpers"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	houseID  int64 = 1
	playerID int64 = 100
	rivalID  int64 = 200

	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	nextFEN  = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
)

type lifecycleFixture struct {
	factory   *MemoryUnitOfWorkFactory
	registry  *Registry
	engine    *testhelpers.MockRulesEngine
	clk       *clock.Mock
	lifecycle *MatchLifecycle
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	factory := NewMemoryUnitOfWorkFactory()
	factory.Store.PutUser(houseID, "house", decimal.NewFromInt(1000000))
	factory.Store.PutUser(playerID, "alice", decimal.NewFromInt(100))
	factory.Store.PutUser(rivalID, "bob", decimal.NewFromInt(100))

	engine := new(testhelpers.MockRulesEngine)
	engine.On("StartingPosition").Return(startFEN).Maybe()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	registry := NewRegistry()
	lifecycle := NewMatchLifecycle(
		factory,
		registry,
		engine,
		services.NewMatchService(),
		services.NewSettlementService(houseID),
		clk,
	)
	return &lifecycleFixture{
		factory:   factory,
		registry:  registry,
		engine:    engine,
		clk:       clk,
		lifecycle: lifecycle,
	}
}

func (f *lifecycleFixture) createBotMatch(t *testing.T, wager int64) *entities.Match {
	t.Helper()
	match, err := f.lifecycle.CreateMatch(context.Background(),
		entities.HumanParticipant(playerID), entities.BotParticipant("Mittens"),
		decimal.NewFromInt(wager), 5)
	require.NoError(t, err)
	return match
}

func TestMatchLifecycle_CreateMatch(t *testing.T) {
	t.Run("escrows the stake and activates the match", func(t *testing.T) {
		f := newLifecycleFixture(t)

		match := f.createBotMatch(t, 10)

		assert.True(t, match.IsActive())
		assert.True(t, f.factory.Store.UserBalance(playerID).Equal(decimal.NewFromInt(90)))
		assert.NotNil(t, f.registry.Get(match.ID))
		assert.NotNil(t, f.factory.Store.Match(match.ID))

		history := f.factory.Store.HistoryFor(playerID)
		require.Len(t, history, 1)
		assert.Equal(t, entities.TransactionTypeWagerEscrow, history[0].TransactionType)
		assert.True(t, history[0].ChangeAmount.Equal(decimal.NewFromInt(-10)))

		evts := f.factory.Store.Events()
		require.Len(t, evts, 1)
		assert.Equal(t, events.EventTypeMatchCreated, evts[0].Type())
	})

	t.Run("insufficient balance leaves no trace", func(t *testing.T) {
		f := newLifecycleFixture(t)

		_, err := f.lifecycle.CreateMatch(context.Background(),
			entities.HumanParticipant(playerID), entities.BotParticipant("Mittens"),
			decimal.NewFromInt(500), 5)
		require.ErrorIs(t, err, entities.ErrInsufficientBalance)

		assert.True(t, f.factory.Store.UserBalance(playerID).Equal(decimal.NewFromInt(100)))
		assert.Empty(t, f.factory.Store.Matches())
		assert.Equal(t, 0, f.registry.Len())
	})

	t.Run("head to head escrows both stakes", func(t *testing.T) {
		f := newLifecycleFixture(t)

		match, err := f.lifecycle.CreateMatch(context.Background(),
			entities.HumanParticipant(playerID), entities.HumanParticipant(rivalID),
			decimal.NewFromInt(25), 5)
		require.NoError(t, err)

		assert.False(t, match.VsBot)
		assert.True(t, f.factory.Store.UserBalance(playerID).Equal(decimal.NewFromInt(75)))
		assert.True(t, f.factory.Store.UserBalance(rivalID).Equal(decimal.NewFromInt(75)))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newLifecycleFixture(t)

		_, err := f.lifecycle.CreateMatch(context.Background(),
			entities.HumanParticipant(999), entities.BotParticipant("Mittens"),
			decimal.NewFromInt(10), 5)
		assert.ErrorIs(t, err, entities.ErrUserNotFound)
	})
}

func TestMatchLifecycle_SubmitMove(t *testing.T) {
	t.Run("legal move advances the session", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		f.engine.On("ApplyMove", startFEN, "e4").Return(&interfaces.MoveResult{
			SAN:         "e4",
			NewPosition: nextFEN,
			Terminal:    interfaces.TerminalState{Kind: interfaces.TerminalNone},
		}, nil).Once()

		updated, err := f.lifecycle.SubmitMove(context.Background(), match.ID, entities.HumanParticipant(playerID), "e4")
		require.NoError(t, err)

		assert.Equal(t, []string{"e4"}, updated.History)
		assert.Equal(t, entities.ColorBlack, updated.Turn)
		assert.Equal(t, nextFEN, updated.Position)
		assert.True(t, updated.IsActive())
	})

	t.Run("illegal move leaves the session untouched", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		f.engine.On("ApplyMove", startFEN, "Ke2").Return(nil, entities.ErrIllegalMove).Once()

		_, err := f.lifecycle.SubmitMove(context.Background(), match.ID, entities.HumanParticipant(playerID), "Ke2")
		require.ErrorIs(t, err, entities.ErrIllegalMove)

		session := f.registry.Get(match.ID)
		require.NotNil(t, session)
		assert.Empty(t, session.Match.History)
		assert.Equal(t, startFEN, session.Match.Position)
	})

	t.Run("out of turn is rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match, err := f.lifecycle.CreateMatch(context.Background(),
			entities.HumanParticipant(playerID), entities.HumanParticipant(rivalID),
			decimal.NewFromInt(10), 5)
		require.NoError(t, err)

		// Black tries to move first.
		_, err = f.lifecycle.SubmitMove(context.Background(), match.ID, entities.HumanParticipant(rivalID), "e5")
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("non-participant is rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		_, err := f.lifecycle.SubmitMove(context.Background(), match.ID, entities.HumanParticipant(999), "e4")
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("unknown match", func(t *testing.T) {
		f := newLifecycleFixture(t)
		_, err := f.lifecycle.SubmitMove(context.Background(), "nope", entities.HumanParticipant(playerID), "e4")
		assert.ErrorIs(t, err, entities.ErrMatchNotFound)
	})
}

func TestMatchLifecycle_CheckmateSettles(t *testing.T) {
	f := newLifecycleFixture(t)
	match := f.createBotMatch(t, 10)

	f.engine.On("ApplyMove", startFEN, "Qxf7#").Return(&interfaces.MoveResult{
		SAN:         "Qxf7#",
		NewPosition: "matefen",
		Terminal:    interfaces.TerminalState{Kind: interfaces.TerminalCheckmate, Winner: entities.ColorWhite},
	}, nil).Once()

	updated, err := f.lifecycle.SubmitMove(context.Background(), match.ID, entities.HumanParticipant(playerID), "Qxf7#")
	require.NoError(t, err)

	assert.True(t, updated.IsCompleted())
	assert.Equal(t, entities.TerminationCheckmate, updated.Reason)
	require.NotNil(t, updated.Winner)
	assert.True(t, updated.Winner.Equal(entities.HumanParticipant(playerID)))
	assert.True(t, updated.Clocks.Frozen)

	// 100 - 10 escrow + 20 payout
	assert.True(t, f.factory.Store.UserBalance(playerID).Equal(decimal.NewFromInt(110)))
	assert.True(t, f.factory.Store.UserBalance(houseID).Equal(decimal.NewFromInt(999990)))
	assert.True(t, f.factory.Store.Settled(match.ID))
	assert.Nil(t, f.registry.Get(match.ID))

	// Retrying settlement applies nothing further.
	require.NoError(t, f.lifecycle.Settle(context.Background(), match.ID))
	assert.True(t, f.factory.Store.UserBalance(playerID).Equal(decimal.NewFromInt(110)))
	assert.True(t, f.factory.Store.UserBalance(houseID).Equal(decimal.NewFromInt(999990)))
}

func TestMatchLifecycle_Resign(t *testing.T) {
	f := newLifecycleFixture(t)
	match := f.createBotMatch(t, 10)

	err := f.lifecycle.Resign(context.Background(), match.ID, entities.HumanParticipant(playerID))
	require.NoError(t, err)

	stored := f.factory.Store.Match(match.ID)
	assert.True(t, stored.IsCompleted())
	assert.Equal(t, entities.TerminationResignation, stored.Reason)
	require.NotNil(t, stored.Winner)
	assert.True(t, stored.Winner.Equal(entities.BotParticipant("Mittens")))

	// Escrow stands, house collects.
	assert.True(t, f.factory.Store.UserBalance(playerID).Equal(decimal.NewFromInt(90)))
	assert.True(t, f.factory.Store.UserBalance(houseID).Equal(decimal.NewFromInt(1000010)))

	// A second resignation is rejected, not double-settled.
	err = f.lifecycle.Resign(context.Background(), match.ID, entities.HumanParticipant(playerID))
	assert.ErrorIs(t, err, entities.ErrMatchNotFound)
}

func TestMatchLifecycle_TickClocks(t *testing.T) {
	t.Run("flag fall completes and settles for the opponent", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		// White (the player) is on move; drain the whole budget.
		active := f.lifecycle.TickClocks(context.Background(), match.ID, 5*time.Minute+time.Second)
		assert.False(t, active)

		stored := f.factory.Store.Match(match.ID)
		assert.True(t, stored.IsCompleted())
		assert.Equal(t, entities.TerminationTimeout, stored.Reason)
		require.NotNil(t, stored.Winner)
		assert.True(t, stored.Winner.Equal(entities.BotParticipant("Mittens")))
		assert.True(t, f.factory.Store.UserBalance(houseID).Equal(decimal.NewFromInt(1000010)))
	})

	t.Run("partial tick persists the clock snapshot", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		active := f.lifecycle.TickClocks(context.Background(), match.ID, 3*time.Second)
		assert.True(t, active)

		stored := f.factory.Store.Match(match.ID)
		assert.Equal(t, 5*time.Minute-3*time.Second, stored.Clocks.White)
		assert.Equal(t, 5*time.Minute, stored.Clocks.Black)
		assert.True(t, stored.IsActive())
	})

	t.Run("completed match no longer needs clock service", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)
		require.NoError(t, f.lifecycle.Resign(context.Background(), match.ID, entities.HumanParticipant(playerID)))

		active := f.lifecycle.TickClocks(context.Background(), match.ID, time.Second)
		assert.False(t, active)
	})
}

func TestMatchLifecycle_GetMatchIsDetached(t *testing.T) {
	t.Run("session mutation does not leak into an earlier read", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		got, err := f.lifecycle.GetMatch(context.Background(), match.ID)
		require.NoError(t, err)

		f.lifecycle.TickClocks(context.Background(), match.ID, 3*time.Second)

		assert.Equal(t, 5*time.Minute, got.Clocks.White)
		session := f.registry.Get(match.ID)
		require.NotNil(t, session)
		assert.Equal(t, 5*time.Minute-3*time.Second, session.Match.Clocks.White)
	})

	t.Run("reads stay clean while the clock runs", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		got, err := f.lifecycle.GetMatch(context.Background(), match.ID)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 200; i++ {
				f.lifecycle.TickClocks(context.Background(), match.ID, time.Millisecond)
			}
		}()

		// Reading the returned match concurrently with ticking must not
		// touch session state; the race detector enforces this.
		for i := 0; i < 200; i++ {
			assert.Equal(t, 5*time.Minute, got.Clocks.White)
			assert.Empty(t, got.History)
		}
		<-done
	})
}

type watchRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (w *watchRecorder) Watch(matchID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = append(w.ids, matchID)
}

type scheduleRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (s *scheduleRecorder) Schedule(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, matchID)
}

func TestMatchLifecycle_ResumeActiveMatches(t *testing.T) {
	restart := func(f *lifecycleFixture) (*MatchLifecycle, *Registry, *watchRecorder, *scheduleRecorder) {
		registry := NewRegistry()
		lifecycle := NewMatchLifecycle(
			f.factory,
			registry,
			f.engine,
			services.NewMatchService(),
			services.NewSettlementService(houseID),
			f.clk,
		)
		watcher := &watchRecorder{}
		bot := &scheduleRecorder{}
		lifecycle.Attach(watcher, bot)
		return lifecycle, registry, watcher, bot
	}

	t.Run("active matches rejoin the registry with their clocks", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)
		f.lifecycle.TickClocks(context.Background(), match.ID, 3*time.Second)

		lifecycle, registry, watcher, bot := restart(f)
		require.NoError(t, lifecycle.ResumeActiveMatches(context.Background()))

		session := registry.Get(match.ID)
		require.NotNil(t, session)
		assert.Equal(t, 5*time.Minute-3*time.Second, session.Match.Clocks.White)
		assert.Equal(t, []string{match.ID}, watcher.ids)
		// Human is on move, so no bot turn to schedule.
		assert.Empty(t, bot.ids)

		// Play continues on the rebuilt session.
		f.engine.On("ApplyMove", startFEN, "e4").Return(&interfaces.MoveResult{
			SAN:         "e4",
			NewPosition: nextFEN,
			Terminal:    interfaces.TerminalState{Kind: interfaces.TerminalNone},
		}, nil).Once()
		updated, err := lifecycle.SubmitMove(context.Background(), match.ID, entities.HumanParticipant(playerID), "e4")
		require.NoError(t, err)
		assert.Equal(t, []string{"e4"}, updated.History)
	})

	t.Run("bot on move is rescheduled", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match, err := f.lifecycle.CreateMatch(context.Background(),
			entities.BotParticipant("Mittens"), entities.HumanParticipant(playerID),
			decimal.NewFromInt(10), 5)
		require.NoError(t, err)

		lifecycle, _, _, bot := restart(f)
		require.NoError(t, lifecycle.ResumeActiveMatches(context.Background()))

		assert.Equal(t, []string{match.ID}, bot.ids)
	})

	t.Run("completed matches stay out", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)
		require.NoError(t, f.lifecycle.Resign(context.Background(), match.ID, entities.HumanParticipant(playerID)))

		lifecycle, registry, watcher, _ := restart(f)
		require.NoError(t, lifecycle.ResumeActiveMatches(context.Background()))

		assert.Equal(t, 0, registry.Len())
		assert.Empty(t, watcher.ids)
	})
}

func TestMatchLifecycle_Settle(t *testing.T) {
	t.Run("not completed", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		err := f.lifecycle.Settle(context.Background(), match.ID)
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("events carry the settlement deltas", func(t *testing.T) {
		f := newLifecycleFixture(t)
		match := f.createBotMatch(t, 10)

		f.engine.On("ApplyMove", startFEN, mock.Anything).Return(&interfaces.MoveResult{
			SAN:         "Qxf7#",
			NewPosition: "matefen",
			Terminal:    interfaces.TerminalState{Kind: interfaces.TerminalCheckmate, Winner: entities.ColorWhite},
		}, nil).Once()

		_, err := f.lifecycle.SubmitMove(context.Background(), match.ID, entities.HumanParticipant(playerID), "Qxf7#")
		require.NoError(t, err)

		var settled *events.MatchSettledEvent
		for _, e := range f.factory.Store.Events() {
			if ev, ok := e.(events.MatchSettledEvent); ok {
				settled = &ev
			}
		}
		require.NotNil(t, settled)
		assert.Equal(t, match.ID, settled.MatchID)
		assert.Equal(t, "20", settled.PlayerDelta)
		assert.Equal(t, "-10", settled.HouseDelta)
	})
}
