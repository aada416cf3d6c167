package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus represents the lifecycle state of a match. Transitions only
// move forward: WAITING -> ACTIVE -> COMPLETED.
type MatchStatus string

const (
	MatchStatusWaiting   MatchStatus = "waiting"
	MatchStatusActive    MatchStatus = "active"
	MatchStatusCompleted MatchStatus = "completed"
)

// TerminationReason records why a match ended.
type TerminationReason string

const (
	TerminationCheckmate   TerminationReason = "checkmate"
	TerminationStalemate   TerminationReason = "stalemate"
	TerminationDraw        TerminationReason = "draw"
	TerminationTimeout     TerminationReason = "timeout"
	TerminationResignation TerminationReason = "resignation"
)

// Match is the state machine owning turn, history, position and terminal
// outcome for one wagered game. Clocks are owned by the match, not shared.
// All mutation goes through ApplyMove and Complete; callers serialize access
// per match id.
type Match struct {
	ID                 string
	White              Participant
	Black              Participant
	Wager              decimal.Decimal // fixed at creation, immutable
	Position           string          // FEN, mutated only by accepted moves
	Turn               Color
	History            []string // accepted moves in SAN, append-only
	Status             MatchStatus
	Winner             *Participant // nil until completed; nil after completion means draw
	Reason             TerminationReason
	VsBot              bool
	TimeControlMinutes int
	Clocks             *ClockPair
	LastMoveAt         time.Time
	CreatedAt          time.Time
	CompletedAt        *time.Time
}

// NewMatch creates an ACTIVE match between white and black with both clocks
// budgeted from the time control and white's clock ticking. The caller has
// already escrowed the wager.
func NewMatch(id string, white, black Participant, wager decimal.Decimal, position string, timeControlMinutes int, now time.Time) *Match {
	clocks := NewClockPair(time.Duration(timeControlMinutes) * time.Minute)
	clocks.Start(ColorWhite)

	return &Match{
		ID:                 id,
		White:              white,
		Black:              black,
		Wager:              wager,
		Position:           position,
		Turn:               ColorWhite,
		Status:             MatchStatusActive,
		VsBot:              !white.IsHuman() || !black.IsHuman(),
		TimeControlMinutes: timeControlMinutes,
		Clocks:             clocks,
		LastMoveAt:         now,
		CreatedAt:          now,
	}
}

// IsActive reports whether the match still accepts moves and clock ticks.
func (m *Match) IsActive() bool {
	return m.Status == MatchStatusActive
}

// IsCompleted reports whether the match reached its terminal state.
func (m *Match) IsCompleted() bool {
	return m.Status == MatchStatusCompleted
}

// IsDraw reports whether a completed match ended without a winner.
func (m *Match) IsDraw() bool {
	return m.IsCompleted() && m.Winner == nil
}

// ParticipantFor returns the participant playing the given side.
func (m *Match) ParticipantFor(color Color) Participant {
	if color == ColorWhite {
		return m.White
	}
	return m.Black
}

// ColorOf returns the side a participant plays, if they are in the match.
func (m *Match) ColorOf(p Participant) (Color, bool) {
	switch {
	case m.White.Equal(p):
		return ColorWhite, true
	case m.Black.Equal(p):
		return ColorBlack, true
	default:
		return "", false
	}
}

// Opponent returns the other side's participant.
func (m *Match) Opponent(p Participant) (Participant, bool) {
	color, ok := m.ColorOf(p)
	if !ok {
		return Participant{}, false
	}
	return m.ParticipantFor(color.Other()), true
}

// HumanPlayer returns the human side of an automated-opponent match.
func (m *Match) HumanPlayer() (Participant, bool) {
	if m.White.IsHuman() {
		return m.White, true
	}
	if m.Black.IsHuman() {
		return m.Black, true
	}
	return Participant{}, false
}

// BotSide returns the automated side of an automated-opponent match.
func (m *Match) BotSide() (Participant, bool) {
	if !m.White.IsHuman() {
		return m.White, true
	}
	if !m.Black.IsHuman() {
		return m.Black, true
	}
	return Participant{}, false
}

// ApplyMove records an accepted move by the given side: appends to history,
// replaces the position, flips the turn, stamps the move time and switches
// the clocks. The entity enforces ACTIVE status and the side to move; chess
// legality is the caller's responsibility (the rules engine must have
// validated the move against the current position before this is invoked).
func (m *Match) ApplyMove(by Color, san, newPosition string, at time.Time) error {
	if !m.IsActive() {
		return ErrInvalidTransition
	}
	if by != m.Turn {
		return ErrInvalidTransition
	}
	m.History = append(m.History, san)
	m.Position = newPosition
	m.Turn = m.Turn.Other()
	m.LastMoveAt = at
	m.Clocks.SwitchActive()
	return nil
}

// Clone returns a deep copy of the match. Live session state is mutated by
// the clock runner and the bot under the session lock; anything handed
// outside that lock must be a detached copy.
func (m *Match) Clone() *Match {
	c := *m
	c.History = append([]string(nil), m.History...)
	if m.Winner != nil {
		w := *m.Winner
		c.Winner = &w
	}
	if m.Clocks != nil {
		clocks := *m.Clocks
		if m.Clocks.Active != nil {
			a := *m.Clocks.Active
			clocks.Active = &a
		}
		c.Clocks = &clocks
	}
	if m.CompletedAt != nil {
		at := *m.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// Complete transitions the match to COMPLETED, records the winner (nil for a
// draw) and reason, and freezes both clocks. Completing an already-completed
// match is a no-op returning false: duplicate checkmate/timeout signals may
// race and the first writer wins regardless of cause.
func (m *Match) Complete(winner *Participant, reason TerminationReason, at time.Time) bool {
	if !m.IsActive() {
		return false
	}
	m.Status = MatchStatusCompleted
	m.Winner = winner
	m.Reason = reason
	m.CompletedAt = &at
	m.Clocks.Freeze()
	return true
}
