package application

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"chesspot/domain/entities"
	"chesspot/domain/interfaces"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// BotPlayer produces the automated opponent's moves. Replies are delayed by
// a minimum latency so clocks demonstrably run during the bot's turn, and an
// oracle failure degrades to a random legal move instead of stalling the
// match.
type BotPlayer struct {
	lifecycle  *MatchLifecycle
	registry   *Registry
	engine     interfaces.RulesEngine
	oracle     interfaces.MoveOracle
	clk        clock.Clock
	minLatency time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewBotPlayer creates a new automated opponent driver
func NewBotPlayer(
	lifecycle *MatchLifecycle,
	registry *Registry,
	engine interfaces.RulesEngine,
	oracle interfaces.MoveOracle,
	clk clock.Clock,
	minLatency time.Duration,
	rng *rand.Rand,
) *BotPlayer {
	return &BotPlayer{
		lifecycle:  lifecycle,
		registry:   registry,
		engine:     engine,
		oracle:     oracle,
		clk:        clk,
		minLatency: minLatency,
		rng:        rng,
	}
}

// Schedule queues the bot's reply for a match after the minimum latency.
func (b *BotPlayer) Schedule(matchID string) {
	b.clk.AfterFunc(b.minLatency, func() {
		b.play(matchID)
	})
}

func (b *BotPlayer) play(matchID string) {
	session := b.registry.Get(matchID)
	if session == nil {
		return
	}

	// Snapshot under the session lock. While it is the bot's turn nothing
	// else can change the position, and any completion in between is caught
	// by move validation.
	session.Lock()
	match := session.Match
	var (
		position = match.Position
		bot      entities.Participant
		ok       bool
	)
	if bot, ok = match.BotSide(); !ok || !match.IsActive() || !match.ParticipantFor(match.Turn).Equal(bot) {
		session.Unlock()
		return
	}
	session.Unlock()

	move, err := b.chooseMove(position)
	if err != nil {
		log.WithError(err).WithField("matchID", matchID).Error("bot could not choose a move")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := b.lifecycle.SubmitMove(ctx, matchID, bot, move); err != nil {
		// The match completed between scheduling and submission.
		if errors.Is(err, entities.ErrInvalidTransition) || errors.Is(err, entities.ErrMatchNotFound) {
			return
		}
		log.WithError(err).WithFields(log.Fields{
			"matchID": matchID,
			"move":    move,
		}).Error("bot move rejected")
	}
}

// chooseMove asks the oracle for a move and falls back to a uniformly random
// legal move when the oracle fails or answers outside the legal set.
func (b *BotPlayer) chooseMove(position string) (string, error) {
	legal, err := b.engine.LegalMoves(position)
	if err != nil {
		return "", err
	}
	if len(legal) == 0 {
		return "", errors.New("no legal moves in position")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	move, err := b.oracle.SuggestMove(ctx, position, legal)
	if err == nil {
		for _, m := range legal {
			if m == move {
				return move, nil
			}
		}
		log.WithField("move", move).Warn("oracle suggested a move outside the legal set")
	} else {
		log.WithError(err).Warn("oracle unavailable, falling back to random move")
	}

	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return legal[b.rng.Intn(len(legal))], nil
}
