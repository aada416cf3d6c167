package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chesspot/domain/entities"
	"chesspot/domain/events"
	"chesspot/domain/interfaces"
	"chesspot/domain/services"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ClockWatcher drives the countdown of an active match.
type ClockWatcher interface {
	Watch(matchID string)
}

// BotMover schedules the automated opponent's next reply in a match.
type BotMover interface {
	Schedule(matchID string)
}

// MatchLifecycle orchestrates match creation, move submission, termination
// and settlement. It owns the session registry and is the only writer of
// match state.
type MatchLifecycle struct {
	uowFactory UnitOfWorkFactory
	registry   *Registry
	engine     interfaces.RulesEngine
	matchSvc   *services.MatchService
	settleSvc  *services.SettlementService
	clk        clock.Clock

	clockWatcher ClockWatcher
	botMover     BotMover
}

// NewMatchLifecycle creates a new match lifecycle orchestrator
func NewMatchLifecycle(
	uowFactory UnitOfWorkFactory,
	registry *Registry,
	engine interfaces.RulesEngine,
	matchSvc *services.MatchService,
	settleSvc *services.SettlementService,
	clk clock.Clock,
) *MatchLifecycle {
	return &MatchLifecycle{
		uowFactory: uowFactory,
		registry:   registry,
		engine:     engine,
		matchSvc:   matchSvc,
		settleSvc:  settleSvc,
		clk:        clk,
	}
}

// Attach wires the collaborators that depend on the lifecycle themselves.
// Must be called before the first CreateMatch.
func (l *MatchLifecycle) Attach(watcher ClockWatcher, bot BotMover) {
	l.clockWatcher = watcher
	l.botMover = bot
}

// CreateMatch escrows the stake of every human participant and creates an
// ACTIVE match between white and black. Escrow and creation commit in one
// transaction: a failed debit means no match exists.
func (l *MatchLifecycle) CreateMatch(ctx context.Context, white, black entities.Participant, wager decimal.Decimal, timeControlMinutes int) (*entities.Match, error) {
	now := l.clk.Now()
	match := entities.NewMatch(uuid.New().String(), white, black, wager, l.engine.StartingPosition(), timeControlMinutes, now)

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock in ascending id order so concurrent creations cannot deadlock.
	for _, id := range escrowOrder(white, black) {
		if err := l.escrow(ctx, uow, id, match); err != nil {
			return nil, err
		}
	}

	if err := uow.MatchRepository().Create(ctx, match); err != nil {
		return nil, err
	}

	if err := uow.EventBus().Publish(events.MatchCreatedEvent{
		MatchID:            match.ID,
		White:              match.White.String(),
		Black:              match.Black.String(),
		Wager:              match.Wager.String(),
		VsBot:              match.VsBot,
		TimeControlMinutes: match.TimeControlMinutes,
	}); err != nil {
		log.WithError(err).Warn("failed to publish match created event")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Snapshot before the watchers start: once they run, the live struct is
	// only safe to read under the session lock.
	snapshot := match.Clone()

	l.registry.Add(match)
	l.startWatchers(match)

	log.WithFields(log.Fields{
		"matchID": snapshot.ID,
		"white":   snapshot.White,
		"black":   snapshot.Black,
		"wager":   snapshot.Wager,
		"vsBot":   snapshot.VsBot,
	}).Info("match created")

	return snapshot, nil
}

// startWatchers begins clock service for a registered match and schedules the
// bot when it is on move.
func (l *MatchLifecycle) startWatchers(match *entities.Match) {
	if l.clockWatcher != nil {
		l.clockWatcher.Watch(match.ID)
	}
	if bot, ok := match.BotSide(); ok && match.ParticipantFor(match.Turn).Equal(bot) && l.botMover != nil {
		l.botMover.Schedule(match.ID)
	}
}

// ResumeActiveMatches reloads matches persisted as active into the session
// registry and restarts their clock service and bot scheduling. Called once
// at startup so matches survive a process restart; their clocks resume from
// the last persisted snapshot.
func (l *MatchLifecycle) ResumeActiveMatches(ctx context.Context) error {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	matches, err := uow.MatchRepository().GetActive(ctx)
	if err != nil {
		return err
	}

	for _, match := range matches {
		l.registry.Add(match)
		l.startWatchers(match)
		log.WithFields(log.Fields{
			"matchID":   match.ID,
			"whiteLeft": match.Clocks.White,
			"blackLeft": match.Clocks.Black,
		}).Info("resumed active match")
	}
	return nil
}

// HasActiveMatch reports whether a user currently participates in any active
// match.
func (l *MatchLifecycle) HasActiveMatch(ctx context.Context, userID int64) (bool, error) {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	matches, err := uow.MatchRepository().GetActiveByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

func (l *MatchLifecycle) escrow(ctx context.Context, uow UnitOfWork, userID int64, match *entities.Match) error {
	user, err := uow.UserRepository().LockForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if err := l.matchSvc.CanCreateMatch(user, match.Wager, match.TimeControlMinutes); err != nil {
		return err
	}

	newBalance, err := uow.UserRepository().AdjustBalance(ctx, userID, match.Wager.Neg())
	if err != nil {
		return err
	}

	return uow.BalanceHistoryRepository().Record(ctx, &entities.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    newBalance,
		ChangeAmount:    match.Wager.Neg(),
		TransactionType: entities.TransactionTypeWagerEscrow,
		MatchID:         &match.ID,
	})
}

func escrowOrder(white, black entities.Participant) []int64 {
	var ids []int64
	if white.IsHuman() {
		ids = append(ids, white.UserID)
	}
	if black.IsHuman() {
		ids = append(ids, black.UserID)
	}
	if len(ids) == 2 && ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	return ids
}

// SubmitMove validates and applies a move by the given actor. A rejected move
// (illegal, out of turn, match over) leaves the session untouched. A move
// that ends the game completes the match and triggers settlement.
func (l *MatchLifecycle) SubmitMove(ctx context.Context, matchID string, actor entities.Participant, move string) (*entities.Match, error) {
	session := l.registry.Get(matchID)
	if session == nil {
		return nil, entities.ErrMatchNotFound
	}

	session.Lock()
	defer session.Unlock()

	match := session.Match
	if err := l.matchSvc.CanSubmitMove(match, actor); err != nil {
		return nil, err
	}

	result, err := l.engine.ApplyMove(match.Position, move)
	if err != nil {
		return nil, err
	}

	color, _ := match.ColorOf(actor)
	now := l.clk.Now()
	if err := match.ApplyMove(color, result.SAN, result.NewPosition, now); err != nil {
		return nil, err
	}

	if result.Terminal.IsTerminal() {
		winner, reason := outcomeOf(match, result.Terminal)
		if err := l.finalizeLocked(ctx, match, winner, reason); err != nil {
			return nil, err
		}
		return match.Clone(), nil
	}

	if err := l.persist(ctx, match); err != nil {
		return nil, err
	}

	if bot, ok := match.BotSide(); ok && match.ParticipantFor(match.Turn).Equal(bot) && l.botMover != nil {
		l.botMover.Schedule(match.ID)
	}
	return match.Clone(), nil
}

// Resign completes the match with the resigning side's opponent as winner.
func (l *MatchLifecycle) Resign(ctx context.Context, matchID string, actor entities.Participant) error {
	session := l.registry.Get(matchID)
	if session == nil {
		return entities.ErrMatchNotFound
	}

	session.Lock()
	defer session.Unlock()

	match := session.Match
	if !match.IsActive() {
		return fmt.Errorf("match %s is not active: %w", matchID, entities.ErrInvalidTransition)
	}
	opponent, ok := match.Opponent(actor)
	if !ok {
		return fmt.Errorf("%s is not a participant of match %s: %w", actor, matchID, entities.ErrInvalidTransition)
	}
	return l.finalizeLocked(ctx, match, &opponent, entities.TerminationResignation)
}

// TickClocks advances the active side's clock by the measured elapsed time
// and completes the match on flag fall. Returns false once the match no
// longer needs clock service.
func (l *MatchLifecycle) TickClocks(ctx context.Context, matchID string, elapsed time.Duration) bool {
	session := l.registry.Get(matchID)
	if session == nil {
		return false
	}

	session.Lock()
	defer session.Unlock()

	match := session.Match
	if !match.IsActive() {
		return false
	}

	timedOut, flagged := match.Clocks.Tick(elapsed)
	if flagged {
		winner := match.ParticipantFor(timedOut.Other())
		if err := l.finalizeLocked(ctx, match, &winner, entities.TerminationTimeout); err != nil {
			log.WithError(err).WithField("matchID", matchID).Error("failed to complete match on timeout")
		}
		return false
	}

	if err := l.persist(ctx, match); err != nil {
		log.WithError(err).WithField("matchID", matchID).Warn("failed to persist clock snapshot")
	}
	return true
}

// GetMatch returns a match by id, preferring the live session over storage.
// Session matches are returned as detached copies: the live struct keeps
// mutating under the session lock after this returns.
func (l *MatchLifecycle) GetMatch(ctx context.Context, matchID string) (*entities.Match, error) {
	if session := l.registry.Get(matchID); session != nil {
		session.Lock()
		defer session.Unlock()
		return session.Match.Clone(), nil
	}

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	match, err := uow.MatchRepository().GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, entities.ErrMatchNotFound
	}
	return match, nil
}

// Settle applies the settlement of a completed match. Safe to call any number
// of times: the deltas apply exactly once. This is the retry path for
// settlements that failed at completion time.
func (l *MatchLifecycle) Settle(ctx context.Context, matchID string) error {
	match, err := l.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.IsCompleted() {
		return fmt.Errorf("match %s is not completed: %w", matchID, entities.ErrInvalidTransition)
	}

	// Cheap read before opening the settlement transaction and taking row
	// locks. The marker insert inside settle still decides exactly-once.
	settled, err := l.isSettled(ctx, matchID)
	if err != nil {
		return err
	}
	if settled {
		return nil
	}
	return l.settle(ctx, match)
}

func (l *MatchLifecycle) isSettled(ctx context.Context, matchID string) (bool, error) {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()
	return uow.SettlementRepository().IsSettled(ctx, matchID)
}

// finalizeLocked persists the terminal transition and then settles. The two
// commits are separate on purpose: once a match is completed it stays
// completed, and a settlement failure is retriable via Settle without
// reopening the game.
func (l *MatchLifecycle) finalizeLocked(ctx context.Context, match *entities.Match, winner *entities.Participant, reason entities.TerminationReason) error {
	if !match.Complete(winner, reason, l.clk.Now()) {
		return nil
	}

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.MatchRepository().Update(ctx, match); err != nil {
		return err
	}

	winnerStr := ""
	if match.Winner != nil {
		winnerStr = match.Winner.String()
	}
	if err := uow.EventBus().Publish(events.MatchCompletedEvent{
		MatchID: match.ID,
		Winner:  winnerStr,
		Reason:  string(match.Reason),
		Moves:   len(match.History),
	}); err != nil {
		log.WithError(err).Warn("failed to publish match completed event")
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"matchID": match.ID,
		"winner":  winnerStr,
		"reason":  match.Reason,
		"moves":   len(match.History),
	}).Info("match completed")

	l.registry.Remove(match.ID)

	if err := l.settle(ctx, match); err != nil {
		log.WithError(err).WithField("matchID", match.ID).Error("settlement deferred, retriable")
		return fmt.Errorf("match %s: %w", match.ID, errors.Join(entities.ErrSettlementFailed, err))
	}
	return nil
}

// settle applies the settlement deltas exactly once. The settled marker is
// written first inside the same transaction as the deltas, so a concurrent or
// repeated call observes the conflict and applies nothing.
func (l *MatchLifecycle) settle(ctx context.Context, match *entities.Match) error {
	settlement, err := l.settleSvc.Compute(match)
	if err != nil {
		return err
	}

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	applied, err := uow.SettlementRepository().MarkSettled(ctx, match.ID)
	if err != nil {
		return err
	}
	if !applied {
		log.WithField("matchID", match.ID).Debug("match already settled")
		return nil
	}

	playerDelta := decimal.Zero
	houseDelta := decimal.Zero
	for _, entry := range settlement.Entries {
		if err := l.applyEntry(ctx, uow, match, entry); err != nil {
			return err
		}
		if entry.Type.IsHouseType() {
			houseDelta = houseDelta.Add(entry.Amount)
		} else {
			playerDelta = playerDelta.Add(entry.Amount)
		}
	}

	if err := uow.EventBus().Publish(events.MatchSettledEvent{
		MatchID:     match.ID,
		PlayerDelta: playerDelta.String(),
		HouseDelta:  houseDelta.String(),
	}); err != nil {
		log.WithError(err).Warn("failed to publish match settled event")
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"matchID":     match.ID,
		"playerDelta": playerDelta,
		"houseDelta":  houseDelta,
	}).Info("match settled")
	return nil
}

func (l *MatchLifecycle) applyEntry(ctx context.Context, uow UnitOfWork, match *entities.Match, entry entities.SettlementEntry) error {
	account, err := uow.UserRepository().LockForUpdate(ctx, entry.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("settlement account %d: %w", entry.AccountID, entities.ErrUserNotFound)
	}

	newBalance, err := uow.UserRepository().AdjustBalance(ctx, entry.AccountID, entry.Amount)
	if err != nil {
		return err
	}

	err = uow.BalanceHistoryRepository().Record(ctx, &entities.BalanceHistory{
		UserID:          entry.AccountID,
		BalanceBefore:   account.Balance,
		BalanceAfter:    newBalance,
		ChangeAmount:    entry.Amount,
		TransactionType: entry.Type,
		MatchID:         &match.ID,
	})
	if err != nil {
		return err
	}

	if err := uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          entry.AccountID,
		OldBalance:      account.Balance.String(),
		NewBalance:      newBalance.String(),
		ChangeAmount:    entry.Amount.String(),
		TransactionType: string(entry.Type),
	}); err != nil {
		log.WithError(err).Warn("failed to publish balance change event")
	}
	return nil
}

// persist writes the mutable match state in its own transaction.
func (l *MatchLifecycle) persist(ctx context.Context, match *entities.Match) error {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.MatchRepository().Update(ctx, match); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// outcomeOf maps a terminal rules verdict onto the match's participants. The
// side to move has already been flipped by ApplyMove, so checkmate's winner
// comes from the engine verdict, not the turn.
func outcomeOf(match *entities.Match, terminal interfaces.TerminalState) (*entities.Participant, entities.TerminationReason) {
	switch terminal.Kind {
	case interfaces.TerminalCheckmate:
		winner := match.ParticipantFor(terminal.Winner)
		return &winner, entities.TerminationCheckmate
	case interfaces.TerminalStalemate:
		return nil, entities.TerminationStalemate
	default:
		return nil, entities.TerminationDraw
	}
}
