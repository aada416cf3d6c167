package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// ParticipantKind distinguishes a human account from an automated opponent.
type ParticipantKind string

const (
	ParticipantHuman ParticipantKind = "human"
	ParticipantBot   ParticipantKind = "bot"
)

// Participant identifies one side of a match: either a real account or an
// automated opponent carrying a cosmetic tag. Settlement and the move
// pipeline dispatch on Kind explicitly.
type Participant struct {
	Kind    ParticipantKind
	UserID  int64  // set when Kind == ParticipantHuman
	BotName string // set when Kind == ParticipantBot
}

// HumanParticipant returns a participant backed by a real account.
func HumanParticipant(userID int64) Participant {
	return Participant{Kind: ParticipantHuman, UserID: userID}
}

// BotParticipant returns an automated participant with a cosmetic name.
func BotParticipant(name string) Participant {
	return Participant{Kind: ParticipantBot, BotName: name}
}

// IsHuman reports whether the participant is backed by a real account.
func (p Participant) IsHuman() bool {
	return p.Kind == ParticipantHuman
}

// Equal reports whether two participants identify the same side.
func (p Participant) Equal(other Participant) bool {
	if p.Kind != other.Kind {
		return false
	}
	if p.Kind == ParticipantHuman {
		return p.UserID == other.UserID
	}
	return p.BotName == other.BotName
}

// String encodes the participant as "user:<id>" or "bot:<name>".
func (p Participant) String() string {
	if p.IsHuman() {
		return fmt.Sprintf("user:%d", p.UserID)
	}
	return fmt.Sprintf("bot:%s", p.BotName)
}

// ParseParticipant decodes the String representation.
func ParseParticipant(s string) (Participant, error) {
	switch {
	case strings.HasPrefix(s, "user:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(s, "user:"), 10, 64)
		if err != nil {
			return Participant{}, fmt.Errorf("invalid participant %q: %w", s, err)
		}
		return HumanParticipant(id), nil
	case strings.HasPrefix(s, "bot:"):
		return BotParticipant(strings.TrimPrefix(s, "bot:")), nil
	default:
		return Participant{}, fmt.Errorf("invalid participant %q", s)
	}
}
