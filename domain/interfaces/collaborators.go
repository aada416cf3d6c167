package interfaces

import (
	"context"

	"chesspot/domain/entities"
)

// TerminalKind classifies a board position's terminal state.
type TerminalKind string

const (
	TerminalNone      TerminalKind = "none"
	TerminalCheckmate TerminalKind = "checkmate"
	TerminalStalemate TerminalKind = "stalemate"
	TerminalDraw      TerminalKind = "draw"
)

// TerminalState is the rules engine's verdict on a position. Winner is only
// meaningful for TerminalCheckmate.
type TerminalState struct {
	Kind   TerminalKind
	Winner entities.Color
}

// IsTerminal reports whether the position ends the game.
func (t TerminalState) IsTerminal() bool {
	return t.Kind != TerminalNone
}

// MoveResult is the outcome of applying a move to a position.
type MoveResult struct {
	SAN         string // normalized algebraic notation of the applied move
	NewPosition string // FEN after the move
	Terminal    TerminalState
}

// RulesEngine is the external chess legality engine. The core consumes it as
// a capability and never reimplements move legality or terminal detection.
type RulesEngine interface {
	// StartingPosition returns the FEN of the initial board.
	StartingPosition() string

	// LegalMoves lists the legal moves for the side to move, in SAN.
	LegalMoves(position string) ([]string, error)

	// ApplyMove validates a move (SAN or UCI) against the position and
	// returns the resulting position. Fails with entities.ErrIllegalMove.
	ApplyMove(position, move string) (*MoveResult, error)

	// Terminal reports whether the position is terminal.
	Terminal(position string) (*TerminalState, error)
}

// MoveOracle selects a move for the automated opponent. It may fail or
// return a move outside the legal set; callers must fall back to a random
// legal move rather than surface the failure to the player.
type MoveOracle interface {
	SuggestMove(ctx context.Context, position string, legalMoves []string) (string, error)
}
