package application

import (
	"context"
	"sync"
	"time"

	"chesspot/domain/entities"
	"chesspot/domain/services"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// ticket is one user's pending queue entry and its fallback timer.
type ticket struct {
	req   services.QueueRequest
	timer *clock.Timer
}

// Matchmaker pairs queued players on identical stake and time control. A
// ticket that stays unmatched past the fallback timeout is resolved against
// an automated opponent instead of expiring.
type Matchmaker struct {
	mu        sync.Mutex
	tickets   map[int64]*ticket
	lifecycle *MatchLifecycle
	matchSvc  *services.MatchmakingService
	clk       clock.Clock
	timeout   time.Duration
}

// NewMatchmaker creates a new matchmaker with the given fallback timeout
func NewMatchmaker(lifecycle *MatchLifecycle, matchSvc *services.MatchmakingService, clk clock.Clock, timeout time.Duration) *Matchmaker {
	return &Matchmaker{
		tickets:   make(map[int64]*ticket),
		lifecycle: lifecycle,
		matchSvc:  matchSvc,
		clk:       clk,
		timeout:   timeout,
	}
}

// Enqueue adds a user to the queue. When a compatible opponent is already
// waiting, both tickets resolve immediately into a match and the match is
// returned; otherwise nil is returned and the user waits. A user already
// playing an active match cannot queue.
func (m *Matchmaker) Enqueue(ctx context.Context, req services.QueueRequest) (*entities.Match, error) {
	busy, err := m.lifecycle.HasActiveMatch(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, entities.ErrMatchInProgress
	}

	m.mu.Lock()

	if _, queued := m.tickets[req.UserID]; queued {
		m.mu.Unlock()
		return nil, entities.ErrAlreadyQueued
	}

	for userID, t := range m.tickets {
		if !m.matchSvc.Compatible(req, t.req) {
			continue
		}

		t.timer.Stop()
		delete(m.tickets, userID)
		m.mu.Unlock()

		white, black := m.matchSvc.AssignSides(
			entities.HumanParticipant(t.req.UserID),
			entities.HumanParticipant(req.UserID),
		)
		match, err := m.lifecycle.CreateMatch(ctx, white, black, req.Wager, req.TimeControlMinutes)
		if err != nil {
			// The waiting opponent loses their spot too; both retry.
			log.WithError(err).WithFields(log.Fields{
				"userID":   req.UserID,
				"opponent": userID,
			}).Warn("failed to create match for paired tickets")
			return nil, err
		}
		return match, nil
	}

	t := &ticket{req: req}
	t.timer = m.clk.AfterFunc(m.timeout, func() {
		m.resolveFallback(req.UserID)
	})
	m.tickets[req.UserID] = t
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"userID":      req.UserID,
		"wager":       req.Wager,
		"timeControl": req.TimeControlMinutes,
	}).Info("user queued for matchmaking")
	return nil, nil
}

// Cancel removes a user's pending ticket. Fails with ErrNotQueued when the
// user is not waiting, including when the fallback already fired.
func (m *Matchmaker) Cancel(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[userID]
	if !ok {
		return entities.ErrNotQueued
	}
	t.timer.Stop()
	delete(m.tickets, userID)

	log.WithField("userID", userID).Info("matchmaking ticket cancelled")
	return nil
}

// Queued reports whether a user currently has a pending ticket.
func (m *Matchmaker) Queued(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tickets[userID]
	return ok
}

// resolveFallback turns an expired ticket into a match against an automated
// opponent. Racing with Cancel or a concurrent pairing is resolved by the
// ticket's presence: whoever removes it acts.
func (m *Matchmaker) resolveFallback(userID int64) {
	m.mu.Lock()
	t, ok := m.tickets[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.tickets, userID)
	req := t.req
	bot := m.matchSvc.SynthesizeOpponent()
	white, black := m.matchSvc.AssignSides(entities.HumanParticipant(req.UserID), bot)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	match, err := m.lifecycle.CreateMatch(ctx, white, black, req.Wager, req.TimeControlMinutes)
	if err != nil {
		log.WithError(err).WithField("userID", userID).Error("failed to create fallback match")
		return
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"matchID": match.ID,
		"bot":     bot.BotName,
	}).Info("matchmaking fell back to automated opponent")
}
