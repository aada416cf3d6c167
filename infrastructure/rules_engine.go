package infrastructure

import (
	"fmt"

	"chesspot/domain/entities"
	"chesspot/domain/interfaces"

	nchess "github.com/corentings/chess/v2"
)

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ChessRulesEngine implements interfaces.RulesEngine on top of the
// corentings/chess move generator. All legality and terminal detection is
// delegated; the engine is stateless and reconstructs a game from FEN per
// call.
type ChessRulesEngine struct{}

// NewChessRulesEngine creates a new rules engine
func NewChessRulesEngine() *ChessRulesEngine {
	return &ChessRulesEngine{}
}

// StartingPosition returns the FEN of the initial board
func (e *ChessRulesEngine) StartingPosition() string {
	return startingFEN
}

// LegalMoves lists the legal moves for the side to move, in SAN
func (e *ChessRulesEngine) LegalMoves(position string) ([]string, error) {
	game, err := gameFrom(position)
	if err != nil {
		return nil, err
	}

	pos := game.Position()
	moves := game.ValidMoves()
	sans := make([]string, 0, len(moves))
	for i := range moves {
		sans = append(sans, nchess.AlgebraicNotation{}.Encode(pos, &moves[i]))
	}
	return sans, nil
}

// ApplyMove validates a move in SAN or UCI notation against the position and
// returns the normalized SAN, the resulting position and its terminal state.
// An unparseable or illegal move fails with entities.ErrIllegalMove.
func (e *ChessRulesEngine) ApplyMove(position, move string) (*interfaces.MoveResult, error) {
	game, err := gameFrom(position)
	if err != nil {
		return nil, err
	}
	pos := game.Position()

	if err := game.PushNotationMove(move, nchess.AlgebraicNotation{}, nil); err != nil {
		if err := game.PushNotationMove(move, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("move %q in position %q: %w", move, position, entities.ErrIllegalMove)
		}
	}

	played := game.Moves()
	last := played[len(played)-1]

	return &interfaces.MoveResult{
		SAN:         nchess.AlgebraicNotation{}.Encode(pos, last),
		NewPosition: game.FEN(),
		Terminal:    terminalOf(game),
	}, nil
}

// Terminal reports whether the position is terminal
func (e *ChessRulesEngine) Terminal(position string) (*interfaces.TerminalState, error) {
	game, err := gameFrom(position)
	if err != nil {
		return nil, err
	}
	state := terminalOf(game)
	return &state, nil
}

func gameFrom(position string) (*nchess.Game, error) {
	option, err := nchess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("invalid position %q: %w", position, err)
	}
	return nchess.NewGame(option), nil
}

// terminalOf inspects the position status directly so it works both after a
// pushed move and on a bare reconstructed position.
func terminalOf(game *nchess.Game) interfaces.TerminalState {
	pos := game.Position()
	switch pos.Status() {
	case nchess.Checkmate:
		// The side to move is the side that was mated.
		winner := entities.ColorWhite
		if pos.Turn() == nchess.White {
			winner = entities.ColorBlack
		}
		return interfaces.TerminalState{Kind: interfaces.TerminalCheckmate, Winner: winner}
	case nchess.Stalemate:
		return interfaces.TerminalState{Kind: interfaces.TerminalStalemate}
	}
	if game.Outcome() == nchess.Draw {
		return interfaces.TerminalState{Kind: interfaces.TerminalDraw}
	}
	return interfaces.TerminalState{Kind: interfaces.TerminalNone}
}
