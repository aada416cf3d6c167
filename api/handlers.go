package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"chesspot/application"
	"chesspot/domain/entities"
	"chesspot/domain/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// HandlerProvider wraps the application services and exposes HTTP handlers.
type HandlerProvider struct {
	lifecycle  *application.MatchLifecycle
	matchmaker *application.Matchmaker
	balances   *application.BalanceService
}

// NewHandler returns a new handler provider.
func NewHandler(lifecycle *application.MatchLifecycle, matchmaker *application.Matchmaker, balances *application.BalanceService) *HandlerProvider {
	return &HandlerProvider{
		lifecycle:  lifecycle,
		matchmaker: matchmaker,
		balances:   balances,
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entities.ErrMatchNotFound),
		errors.Is(err, entities.ErrUserNotFound),
		errors.Is(err, entities.ErrNotQueued):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrIllegalMove):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, entities.ErrInvalidTransition),
		errors.Is(err, entities.ErrInsufficientBalance),
		errors.Is(err, entities.ErrAlreadyQueued),
		errors.Is(err, entities.ErrMatchInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseUserIDFromPath(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid userID in path")
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return errors.New("invalid JSON")
	}
	return nil
}

// --- DTOs ---

type clocksResponse struct {
	WhiteRemainingMs int64   `json:"white_remaining_ms"`
	BlackRemainingMs int64   `json:"black_remaining_ms"`
	Active           *string `json:"active,omitempty"`
}

type matchResponse struct {
	ID                 string         `json:"id"`
	White              string         `json:"white"`
	Black              string         `json:"black"`
	Wager              string         `json:"wager"`
	Position           string         `json:"position"`
	Turn               string         `json:"turn"`
	History            []string       `json:"history"`
	Status             string         `json:"status"`
	Winner             *string        `json:"winner,omitempty"`
	Reason             string         `json:"reason,omitempty"`
	VsBot              bool           `json:"vs_bot"`
	TimeControlMinutes int            `json:"time_control_minutes"`
	Clocks             clocksResponse `json:"clocks"`
}

func toMatchResponse(m *entities.Match) matchResponse {
	resp := matchResponse{
		ID:                 m.ID,
		White:              m.White.String(),
		Black:              m.Black.String(),
		Wager:              m.Wager.String(),
		Position:           m.Position,
		Turn:               string(m.Turn),
		History:            m.History,
		Status:             string(m.Status),
		Reason:             string(m.Reason),
		VsBot:              m.VsBot,
		TimeControlMinutes: m.TimeControlMinutes,
		Clocks: clocksResponse{
			WhiteRemainingMs: m.Clocks.White.Milliseconds(),
			BlackRemainingMs: m.Clocks.Black.Milliseconds(),
		},
	}
	if m.Winner != nil {
		s := m.Winner.String()
		resp.Winner = &s
	}
	if m.Clocks.Active != nil {
		s := string(*m.Clocks.Active)
		resp.Clocks.Active = &s
	}
	return resp
}

// --- Matchmaking handlers ---

type queueRequest struct {
	UserID             int64  `json:"user_id"`
	Username           string `json:"username"`
	Wager              string `json:"wager"`
	TimeControlMinutes int    `json:"time_control_minutes"`
}

// EnqueueHandler handles POST /matchmaking/queue. Responds 200 with the match
// when a compatible opponent was waiting, 202 when the user is queued.
func (h *HandlerProvider) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	wager, err := decimal.NewFromString(req.Wager)
	if err != nil || !wager.IsPositive() {
		writeError(w, http.StatusBadRequest, "wager must be a positive decimal")
		return
	}
	if req.TimeControlMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "time_control_minutes must be positive")
		return
	}

	user, err := h.balances.EnsureUser(r.Context(), req.UserID, req.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := user.ValidateStake(wager); err != nil {
		writeDomainError(w, err)
		return
	}

	match, err := h.matchmaker.Enqueue(r.Context(), services.QueueRequest{
		UserID:             req.UserID,
		Wager:              wager,
		TimeControlMinutes: req.TimeControlMinutes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if match == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

// DequeueHandler handles DELETE /matchmaking/queue/{userID}
func (h *HandlerProvider) DequeueHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.matchmaker.Cancel(userID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Match handlers ---

// GetMatchHandler handles GET /matches/{matchID}
func (h *HandlerProvider) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	match, err := h.lifecycle.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

type moveRequest struct {
	UserID int64  `json:"user_id"`
	Move   string `json:"move"`
}

// SubmitMoveHandler handles POST /matches/{matchID}/moves
func (h *HandlerProvider) SubmitMoveHandler(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 || req.Move == "" {
		writeError(w, http.StatusBadRequest, "user_id and move required")
		return
	}

	match, err := h.lifecycle.SubmitMove(r.Context(), chi.URLParam(r, "matchID"), entities.HumanParticipant(req.UserID), req.Move)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

type resignRequest struct {
	UserID int64 `json:"user_id"`
}

// ResignHandler handles POST /matches/{matchID}/resign
func (h *HandlerProvider) ResignHandler(w http.ResponseWriter, r *http.Request) {
	var req resignRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	matchID := chi.URLParam(r, "matchID")
	if err := h.lifecycle.Resign(r.Context(), matchID, entities.HumanParticipant(req.UserID)); err != nil {
		writeDomainError(w, err)
		return
	}

	match, err := h.lifecycle.GetMatch(r.Context(), matchID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

// SettleHandler handles POST /matches/{matchID}/settle, the retry path for a
// settlement that failed at completion time. Idempotent.
func (h *HandlerProvider) SettleHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.Settle(r.Context(), chi.URLParam(r, "matchID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// --- Balance handlers ---

// GetBalanceHandler handles GET /users/{userID}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"balance": balance.String(),
	})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// DepositHandler handles POST /users/{userID}/deposit
func (h *HandlerProvider) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.applyAmount(w, r, h.balances.Deposit)
}

// WithdrawHandler handles POST /users/{userID}/withdraw
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.applyAmount(w, r, h.balances.Withdraw)
}

func (h *HandlerProvider) applyAmount(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be a positive decimal")
		return
	}

	newBalance, err := op(r.Context(), userID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"balance": newBalance.String(),
	})
}

type historyEntryResponse struct {
	ID              int64   `json:"id"`
	BalanceBefore   string  `json:"balance_before"`
	BalanceAfter    string  `json:"balance_after"`
	ChangeAmount    string  `json:"change_amount"`
	TransactionType string  `json:"transaction_type"`
	MatchID         *string `json:"match_id,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// GetHistoryHandler handles GET /users/{userID}/history
func (h *HandlerProvider) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	entries, err := h.balances.History(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyEntryResponse{
			ID:              e.ID,
			BalanceBefore:   e.BalanceBefore.String(),
			BalanceAfter:    e.BalanceAfter.String(),
			ChangeAmount:    e.ChangeAmount.String(),
			TransactionType: string(e.TransactionType),
			MatchID:         e.MatchID,
			CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
