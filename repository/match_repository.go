package repository

import (
	"context"
	"fmt"
	"time"

	"chesspot/database"
	"chesspot/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MatchRepository implements the interfaces.MatchRepository interface
type MatchRepository struct {
	q Queryable
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{q: db.Pool}
}

// newMatchRepository creates a new match repository bound to a transaction
func newMatchRepository(tx Queryable) *MatchRepository {
	return &MatchRepository{q: tx}
}

const matchColumns = `
	id, white_participant, black_participant, wager::text, position, turn,
	history, status, winner, reason, vs_bot, time_control_minutes,
	white_remaining_ms, black_remaining_ms, active_color,
	last_move_at, created_at, completed_at
`

// Create persists a newly created match
func (r *MatchRepository) Create(ctx context.Context, m *entities.Match) error {
	query := `
		INSERT INTO matches (
			id, white_participant, black_participant, wager, position, turn,
			history, status, winner, reason, vs_bot, time_control_minutes,
			white_remaining_ms, black_remaining_ms, active_color,
			last_move_at, created_at, completed_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.q.Exec(ctx, query,
		m.ID,
		m.White.String(),
		m.Black.String(),
		m.Wager.String(),
		m.Position,
		string(m.Turn),
		m.History,
		string(m.Status),
		winnerColumn(m),
		reasonColumn(m),
		m.VsBot,
		m.TimeControlMinutes,
		m.Clocks.White.Milliseconds(),
		m.Clocks.Black.Milliseconds(),
		activeColorColumn(m),
		m.LastMoveAt,
		m.CreatedAt,
		m.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create match %s: %w", m.ID, err)
	}
	return nil
}

// GetByID retrieves a match by its id
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*entities.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := r.scanMatch(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return m, nil
}

// Update persists the mutable portion of a match
func (r *MatchRepository) Update(ctx context.Context, m *entities.Match) error {
	query := `
		UPDATE matches
		SET position = $1, turn = $2, history = $3, status = $4, winner = $5,
			reason = $6, white_remaining_ms = $7, black_remaining_ms = $8,
			active_color = $9, last_move_at = $10, completed_at = $11
		WHERE id = $12
	`

	result, err := r.q.Exec(ctx, query,
		m.Position,
		string(m.Turn),
		m.History,
		string(m.Status),
		winnerColumn(m),
		reasonColumn(m),
		m.Clocks.White.Milliseconds(),
		m.Clocks.Black.Milliseconds(),
		activeColorColumn(m),
		m.LastMoveAt,
		m.CompletedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", m.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("match %s: %w", m.ID, entities.ErrMatchNotFound)
	}
	return nil
}

// GetActiveByUser returns all active matches a user participates in
func (r *MatchRepository) GetActiveByUser(ctx context.Context, userID int64) ([]*entities.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = 'active'
		  AND (white_participant = $1 OR black_participant = $1)
		ORDER BY created_at DESC
	`

	participant := entities.HumanParticipant(userID).String()
	rows, err := r.q.Query(ctx, query, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to get active matches for user %d: %w", userID, err)
	}
	return r.collectMatches(rows)
}

// GetActive returns all matches persisted as active, oldest first. Used at
// startup to rebuild the session registry after a restart.
func (r *MatchRepository) GetActive(ctx context.Context) ([]*entities.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = 'active'
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active matches: %w", err)
	}
	return r.collectMatches(rows)
}

func (r *MatchRepository) collectMatches(rows pgx.Rows) ([]*entities.Match, error) {
	defer rows.Close()

	var matches []*entities.Match
	for rows.Next() {
		m, err := r.scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, nil
}

func (r *MatchRepository) scanMatch(row pgx.Row) (*entities.Match, error) {
	var (
		match            entities.Match
		white, black     string
		wagerStr         string
		turn, status     string
		winner, reason   *string
		whiteMs, blackMs int64
		activeColor      *string
	)

	err := row.Scan(
		&match.ID,
		&white,
		&black,
		&wagerStr,
		&match.Position,
		&turn,
		&match.History,
		&status,
		&winner,
		&reason,
		&match.VsBot,
		&match.TimeControlMinutes,
		&whiteMs,
		&blackMs,
		&activeColor,
		&match.LastMoveAt,
		&match.CreatedAt,
		&match.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if match.White, err = entities.ParseParticipant(white); err != nil {
		return nil, err
	}
	if match.Black, err = entities.ParseParticipant(black); err != nil {
		return nil, err
	}
	if match.Wager, err = decimal.NewFromString(wagerStr); err != nil {
		return nil, fmt.Errorf("failed to parse wager %q: %w", wagerStr, err)
	}
	match.Turn = entities.Color(turn)
	match.Status = entities.MatchStatus(status)
	if winner != nil {
		p, err := entities.ParseParticipant(*winner)
		if err != nil {
			return nil, err
		}
		match.Winner = &p
	}
	if reason != nil {
		match.Reason = entities.TerminationReason(*reason)
	}

	match.Clocks = &entities.ClockPair{
		White:  time.Duration(whiteMs) * time.Millisecond,
		Black:  time.Duration(blackMs) * time.Millisecond,
		Frozen: match.Status == entities.MatchStatusCompleted,
	}
	if activeColor != nil && !match.Clocks.Frozen {
		c := entities.Color(*activeColor)
		match.Clocks.Active = &c
	}

	return &match, nil
}

func winnerColumn(m *entities.Match) *string {
	if m.Winner == nil {
		return nil
	}
	s := m.Winner.String()
	return &s
}

func reasonColumn(m *entities.Match) *string {
	if m.Reason == "" {
		return nil
	}
	s := string(m.Reason)
	return &s
}

func activeColorColumn(m *entities.Match) *string {
	if m.Clocks == nil || m.Clocks.Active == nil {
		return nil
	}
	s := string(*m.Clocks.Active)
	return &s
}
