package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chesspot/application"
	"chesspot/domain/entities"
	"chesspot/domain/interfaces"
	"chesspot/domain/services"
	"chesspot/domain/testhelpers"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	houseID  int64 = 1
	aliceID  int64 = 100
	bobID    int64 = 200
	startFEN       = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	nextFEN        = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
)

type apiFixture struct {
	factory   *application.MemoryUnitOfWorkFactory
	engine    *testhelpers.MockRulesEngine
	lifecycle *application.MatchLifecycle
	handler   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	factory := application.NewMemoryUnitOfWorkFactory()
	factory.Store.PutUser(houseID, "house", decimal.NewFromInt(1000000))

	engine := new(testhelpers.MockRulesEngine)
	engine.On("StartingPosition").Return(startFEN).Maybe()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	registry := application.NewRegistry()
	lifecycle := application.NewMatchLifecycle(
		factory,
		registry,
		engine,
		services.NewMatchService(),
		services.NewSettlementService(houseID),
		clk,
	)
	matchmaker := application.NewMatchmaker(lifecycle, services.NewMatchmakingService(rand.New(rand.NewSource(1))), clk, 60*time.Second)
	balances := application.NewBalanceService(factory, decimal.NewFromInt(1000))

	return &apiFixture{
		factory:   factory,
		engine:    engine,
		lifecycle: lifecycle,
		handler:   NewRouter(lifecycle, matchmaker, balances),
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) enqueue(t *testing.T, userID int64, wager string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/matchmaking/queue", map[string]any{
		"user_id":              userID,
		"username":             fmt.Sprintf("user%d", userID),
		"wager":                wager,
		"time_control_minutes": 5,
	})
}

func decodeMatch(t *testing.T, rec *httptest.ResponseRecorder) matchResponse {
	t.Helper()
	var resp matchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestEnqueueHandler(t *testing.T) {
	t.Run("first ticket queues", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.enqueue(t, aliceID, "10")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("compatible tickets pair into a match", func(t *testing.T) {
		f := newAPIFixture(t)
		require.Equal(t, http.StatusAccepted, f.enqueue(t, aliceID, "10").Code)

		rec := f.enqueue(t, bobID, "10")
		require.Equal(t, http.StatusOK, rec.Code)

		match := decodeMatch(t, rec)
		assert.Equal(t, "active", match.Status)
		assert.False(t, match.VsBot)
		assert.Equal(t, "10", match.Wager)
		assert.Equal(t, int64(5*60*1000), match.Clocks.WhiteRemainingMs)
	})

	t.Run("double queue conflicts", func(t *testing.T) {
		f := newAPIFixture(t)
		require.Equal(t, http.StatusAccepted, f.enqueue(t, aliceID, "10").Code)
		assert.Equal(t, http.StatusConflict, f.enqueue(t, aliceID, "10").Code)
	})

	t.Run("bad requests", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/matchmaking/queue", map[string]any{
			"user_id": aliceID, "wager": "-5", "time_control_minutes": 5,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, "/matchmaking/queue", map[string]any{
			"user_id": aliceID, "wager": "10", "time_control_minutes": 0,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, "/matchmaking/queue", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("player already in a match conflicts", func(t *testing.T) {
		f := newAPIFixture(t)
		pairMatch(t, f)
		assert.Equal(t, http.StatusConflict, f.enqueue(t, aliceID, "10").Code)
	})

	t.Run("stake beyond balance conflicts", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.enqueue(t, aliceID, "100000")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestDequeueHandler(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusAccepted, f.enqueue(t, aliceID, "10").Code)

	rec := f.do(t, http.MethodDelete, fmt.Sprintf("/matchmaking/queue/%d", aliceID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/matchmaking/queue/%d", aliceID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// pairMatch creates an active head-to-head match through the queue and
// returns its response body.
func pairMatch(t *testing.T, f *apiFixture) matchResponse {
	t.Helper()
	require.Equal(t, http.StatusAccepted, f.enqueue(t, aliceID, "10").Code)
	rec := f.enqueue(t, bobID, "10")
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeMatch(t, rec)
}

func whiteUserID(t *testing.T, match matchResponse) int64 {
	t.Helper()
	p, err := entities.ParseParticipant(match.White)
	require.NoError(t, err)
	require.True(t, p.IsHuman())
	return p.UserID
}

func TestSubmitMoveHandler(t *testing.T) {
	t.Run("legal move", func(t *testing.T) {
		f := newAPIFixture(t)
		match := pairMatch(t, f)
		mover := whiteUserID(t, match)

		f.engine.On("ApplyMove", startFEN, "e4").Return(&interfaces.MoveResult{
			SAN:         "e4",
			NewPosition: nextFEN,
			Terminal:    interfaces.TerminalState{Kind: interfaces.TerminalNone},
		}, nil).Once()

		rec := f.do(t, http.MethodPost, "/matches/"+match.ID+"/moves", map[string]any{
			"user_id": mover, "move": "e4",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		updated := decodeMatch(t, rec)
		assert.Equal(t, []string{"e4"}, updated.History)
		assert.Equal(t, "black", updated.Turn)
	})

	t.Run("illegal move", func(t *testing.T) {
		f := newAPIFixture(t)
		match := pairMatch(t, f)
		mover := whiteUserID(t, match)

		f.engine.On("ApplyMove", startFEN, "e5").Return(nil, entities.ErrIllegalMove).Once()

		rec := f.do(t, http.MethodPost, "/matches/"+match.ID+"/moves", map[string]any{
			"user_id": mover, "move": "e5",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("out of turn", func(t *testing.T) {
		f := newAPIFixture(t)
		match := pairMatch(t, f)
		black := aliceID + bobID - whiteUserID(t, match)

		rec := f.do(t, http.MethodPost, "/matches/"+match.ID+"/moves", map[string]any{
			"user_id": black, "move": "e5",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown match", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodPost, "/matches/nope/moves", map[string]any{
			"user_id": aliceID, "move": "e4",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestResignAndSettleHandlers(t *testing.T) {
	f := newAPIFixture(t)
	match := pairMatch(t, f)
	white := whiteUserID(t, match)
	black := aliceID + bobID - white

	rec := f.do(t, http.MethodPost, "/matches/"+match.ID+"/resign", map[string]any{"user_id": white})
	require.Equal(t, http.StatusOK, rec.Code)

	completed := decodeMatch(t, rec)
	assert.Equal(t, "completed", completed.Status)
	assert.Equal(t, "resignation", completed.Reason)
	require.NotNil(t, completed.Winner)
	assert.Equal(t, fmt.Sprintf("user:%d", black), *completed.Winner)

	// Winner took the pot: 1000 - 10 + 20.
	assert.True(t, f.factory.Store.UserBalance(black).Equal(decimal.NewFromInt(1010)))
	assert.True(t, f.factory.Store.UserBalance(white).Equal(decimal.NewFromInt(990)))

	// Settle retry is idempotent.
	rec = f.do(t, http.MethodPost, "/matches/"+match.ID+"/settle", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.factory.Store.UserBalance(black).Equal(decimal.NewFromInt(1010)))

	// Resigning a finished match conflicts.
	rec = f.do(t, http.MethodPost, "/matches/"+match.ID+"/resign", map[string]any{"user_id": black})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMatchHandler(t *testing.T) {
	f := newAPIFixture(t)
	match := pairMatch(t, f)

	rec := f.do(t, http.MethodGet, "/matches/"+match.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeMatch(t, rec)
	assert.Equal(t, match.ID, got.ID)
	assert.Equal(t, startFEN, got.Position)

	rec = f.do(t, http.MethodGet, "/matches/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBalanceHandlers(t *testing.T) {
	f := newAPIFixture(t)
	f.factory.Store.PutUser(aliceID, "alice", decimal.NewFromInt(100))

	t.Run("get balance", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/users/%d/balance", aliceID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"balance":"100"`)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/users/999/balance", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("deposit and withdraw", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/users/%d/deposit", aliceID), map[string]any{"amount": "50.25"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"balance":"150.25"`)

		rec = f.do(t, http.MethodPost, fmt.Sprintf("/users/%d/withdraw", aliceID), map[string]any{"amount": "1000"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = f.do(t, http.MethodPost, fmt.Sprintf("/users/%d/withdraw", aliceID), map[string]any{"amount": "0"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("history", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/users/%d/history?limit=10", aliceID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var entries []historyEntryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.NotEmpty(t, entries)
		assert.Equal(t, "deposit", entries[0].TransactionType)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/users/%d/history?limit=0", aliceID), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
