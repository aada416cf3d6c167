package entities

import "errors"

// Core error taxonomy. Callers wrap these with fmt.Errorf("...: %w", err)
// so errors.Is works across layers.
var (
	// ErrInvalidTransition indicates a move or completion attempted against
	// session invariants (wrong turn, already completed, not a participant).
	// The session state is left unchanged.
	ErrInvalidTransition = errors.New("invalid match transition")

	// ErrIllegalMove indicates the rules engine rejected a move.
	ErrIllegalMove = errors.New("illegal move")

	// ErrSettlementFailed indicates a store-level failure while applying
	// settlement deltas. The match stays completed but unsettled; retry is
	// the recovery path.
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrAlreadySettled indicates the settled marker already exists for a match.
	ErrAlreadySettled = errors.New("match already settled")

	// ErrOracleUnavailable indicates the move oracle failed or returned an
	// unusable move. Never surfaced to players; the caller falls back to a
	// random legal move.
	ErrOracleUnavailable = errors.New("move oracle unavailable")

	// ErrInsufficientBalance indicates an account cannot cover a debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMatchNotFound indicates no match exists for the given id.
	ErrMatchNotFound = errors.New("match not found")

	// ErrUserNotFound indicates no account exists for the given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotQueued indicates a matchmaking cancel for a player that is not waiting.
	ErrNotQueued = errors.New("player is not queued")

	// ErrAlreadyQueued indicates a matchmaking enqueue for a player that is
	// already waiting for an opponent.
	ErrAlreadyQueued = errors.New("player is already queued")

	// ErrMatchInProgress indicates a matchmaking enqueue for a player that
	// already participates in an active match.
	ErrMatchInProgress = errors.New("player already has a match in progress")
)
