package api

import (
	"net/http"
	"time"

	"chesspot/application"
)

// NewServer creates and returns a configured *http.Server for the match API.
func NewServer(addr string, lifecycle *application.MatchLifecycle, matchmaker *application.Matchmaker, balances *application.BalanceService) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(lifecycle, matchmaker, balances),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
