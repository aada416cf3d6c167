package events

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeMatchCreated   EventType = "match_created"
	EventTypeMatchCompleted EventType = "match_completed"
	EventTypeMatchSettled   EventType = "match_settled"
	EventTypeBalanceChange  EventType = "balance_change"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// MatchCreatedEvent represents a new match entering ACTIVE state
type MatchCreatedEvent struct {
	MatchID            string `json:"match_id"`
	White              string `json:"white"`
	Black              string `json:"black"`
	Wager              string `json:"wager"`
	VsBot              bool   `json:"vs_bot"`
	TimeControlMinutes int    `json:"time_control_minutes"`
}

func (e MatchCreatedEvent) Type() EventType {
	return EventTypeMatchCreated
}

// MatchCompletedEvent represents a match reaching its terminal state
type MatchCompletedEvent struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner,omitempty"` // empty on a draw
	Reason  string `json:"reason"`
	Moves   int    `json:"moves"`
}

func (e MatchCompletedEvent) Type() EventType {
	return EventTypeMatchCompleted
}

// MatchSettledEvent represents the one-time application of settlement deltas
type MatchSettledEvent struct {
	MatchID     string `json:"match_id"`
	PlayerDelta string `json:"player_delta"`
	HouseDelta  string `json:"house_delta"`
}

func (e MatchSettledEvent) Type() EventType {
	return EventTypeMatchSettled
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64  `json:"user_id"`
	OldBalance      string `json:"old_balance"`
	NewBalance      string `json:"new_balance"`
	ChangeAmount    string `json:"change_amount"`
	TransactionType string `json:"transaction_type"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}
