package infrastructure

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"chesspot/domain/entities"
)

// GreedyOracle implements interfaces.MoveOracle with a shallow material
// heuristic over SAN strings: prefer mate, then captures and checks, then a
// random move. Good enough to make clocks and settlement observable without
// an engine dependency.
type GreedyOracle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGreedyOracle creates a new greedy oracle
func NewGreedyOracle(rng *rand.Rand) *GreedyOracle {
	return &GreedyOracle{rng: rng}
}

// SuggestMove picks a move from the legal set
func (o *GreedyOracle) SuggestMove(_ context.Context, _ string, legalMoves []string) (string, error) {
	if len(legalMoves) == 0 {
		return "", entities.ErrOracleUnavailable
	}

	var forcing []string
	for _, move := range legalMoves {
		if strings.HasSuffix(move, "#") {
			return move, nil
		}
		if strings.Contains(move, "x") || strings.HasSuffix(move, "+") {
			forcing = append(forcing, move)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(forcing) > 0 {
		return forcing[o.rng.Intn(len(forcing))], nil
	}
	return legalMoves[o.rng.Intn(len(legalMoves))], nil
}
