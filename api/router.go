package api

import (
	"net/http"

	"chesspot/application"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP router with all API endpoints registered.
func NewRouter(lifecycle *application.MatchLifecycle, matchmaker *application.Matchmaker, balances *application.BalanceService) http.Handler {
	h := NewHandler(lifecycle, matchmaker, balances)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/matchmaking/queue", h.EnqueueHandler)
	r.Delete("/matchmaking/queue/{userID}", h.DequeueHandler)

	r.Get("/matches/{matchID}", h.GetMatchHandler)
	r.Post("/matches/{matchID}/moves", h.SubmitMoveHandler)
	r.Post("/matches/{matchID}/resign", h.ResignHandler)
	r.Post("/matches/{matchID}/settle", h.SettleHandler)

	r.Get("/users/{userID}/balance", h.GetBalanceHandler)
	r.Post("/users/{userID}/deposit", h.DepositHandler)
	r.Post("/users/{userID}/withdraw", h.WithdrawHandler)
	r.Get("/users/{userID}/history", h.GetHistoryHandler)

	return r
}
