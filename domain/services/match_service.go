package services

import (
	"errors"
	"fmt"

	"chesspot/domain/entities"

	"github.com/shopspring/decimal"
)

// MatchService contains pure validation logic for match creation and move
// submission preconditions.
type MatchService struct{}

// NewMatchService creates a new MatchService
func NewMatchService() *MatchService {
	return &MatchService{}
}

// CanCreateMatch validates that a user can stake the given wager on a match.
func (s *MatchService) CanCreateMatch(user *entities.User, wager decimal.Decimal, timeControlMinutes int) error {
	if user == nil {
		return entities.ErrUserNotFound
	}
	if timeControlMinutes <= 0 {
		return errors.New("time control must be positive")
	}
	if err := user.ValidateStake(wager); err != nil {
		return err
	}
	return nil
}

// CanSubmitMove validates that an actor may move in a match right now: the
// match is active, the actor participates, and it is the actor's turn.
// Violations map to ErrInvalidTransition; the session state is unchanged.
func (s *MatchService) CanSubmitMove(match *entities.Match, actor entities.Participant) error {
	if !match.IsActive() {
		return fmt.Errorf("match %s is not active: %w", match.ID, entities.ErrInvalidTransition)
	}
	color, ok := match.ColorOf(actor)
	if !ok {
		return fmt.Errorf("%s is not a participant of match %s: %w", actor, match.ID, entities.ErrInvalidTransition)
	}
	if color != match.Turn {
		return fmt.Errorf("it is not %s's turn in match %s: %w", actor, match.ID, entities.ErrInvalidTransition)
	}
	return nil
}
