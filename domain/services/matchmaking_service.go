package services

import (
	"math/rand"

	"chesspot/domain/entities"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// botNamePool holds the cosmetic names automated opponents are drawn from.
var botNamePool = []string{
	"Boris", "Capablanca-9", "DeepShallow", "Fishy", "Karpovnik",
	"Mittens", "PawnStar", "Rooknroll", "Tal-Bot", "Zugzwang",
}

// MatchmakingService contains pure matchmaking decisions: ticket
// compatibility, side assignment and automated-opponent synthesis. The queue
// itself and its timers live in the application layer.
type MatchmakingService struct {
	rng *rand.Rand
}

// NewMatchmakingService creates a new MatchmakingService. The rng is injected
// so side assignment is deterministic in tests.
func NewMatchmakingService(rng *rand.Rand) *MatchmakingService {
	return &MatchmakingService{rng: rng}
}

// Compatible reports whether two queued requests can be paired: identical
// stake and time control, different players.
func (s *MatchmakingService) Compatible(a, b QueueRequest) bool {
	if a.UserID == b.UserID {
		return false
	}
	return a.Wager.Equal(b.Wager) && a.TimeControlMinutes == b.TimeControlMinutes
}

// AssignSides randomizes which participant plays white, with even odds.
func (s *MatchmakingService) AssignSides(a, b entities.Participant) (white, black entities.Participant) {
	if s.rng.Intn(2) == 0 {
		return a, b
	}
	return b, a
}

// SynthesizeOpponent creates an automated opponent with a name drawn from the
// fixed pool. The name is cosmetic only.
func (s *MatchmakingService) SynthesizeOpponent() entities.Participant {
	return entities.BotParticipant(botNamePool[s.rng.Intn(len(botNamePool))])
}

// QueueRequest is one player's pending matchmaking request.
type QueueRequest struct {
	UserID             int64
	Wager              decimal.Decimal
	TimeControlMinutes int
}
