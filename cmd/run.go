package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"chesspot/api"
	"chesspot/application"
	"chesspot/config"
	"chesspot/database"
	"chesspot/domain/interfaces"
	"chesspot/domain/services"
	"chesspot/infrastructure"
	"chesspot/repository"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting chesspot...")

	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Event bus: NATS when configured, no-op otherwise.
	var (
		realPublisher interfaces.EventPublisher = infrastructure.NewNoopEventPublisher()
		natsClient    *infrastructure.NATSClient
	)
	if cfg.NATSServers != "" {
		log.Info("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		publisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := publisher.EnsureDomainEventStream(); err != nil {
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		realPublisher = publisher
	} else {
		log.Warn("NATS_SERVERS not set, events are disabled")
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, func() application.TransactionalEventPublisher {
		return infrastructure.NewNATSTransactionalPublisher(realPublisher)
	})

	clk := clock.New()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	engine := infrastructure.NewChessRulesEngine()
	oracle := infrastructure.NewGreedyOracle(rand.New(rand.NewSource(time.Now().UnixNano() + 1)))

	registry := application.NewRegistry()
	lifecycle := application.NewMatchLifecycle(
		uowFactory,
		registry,
		engine,
		services.NewMatchService(),
		services.NewSettlementService(cfg.HouseAccountID),
		clk,
	)
	clockRunner := application.NewClockRunner(lifecycle, clk)
	botPlayer := application.NewBotPlayer(lifecycle, registry, engine, oracle, clk, cfg.BotMoveMinLatency, rng)
	lifecycle.Attach(clockRunner, botPlayer)

	// Rebuild sessions for matches that were active when the process last
	// stopped; their clocks resume from the persisted snapshots.
	if err := lifecycle.ResumeActiveMatches(ctx); err != nil {
		return fmt.Errorf("failed to resume active matches: %w", err)
	}

	matchmaker := application.NewMatchmaker(lifecycle, services.NewMatchmakingService(rng), clk, cfg.MatchmakingTimeout)
	balances := application.NewBalanceService(uowFactory, cfg.StartingBalance)

	server := api.NewServer(cfg.HTTPAddr, lifecycle, matchmaker, balances)
	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.WithField("environment", cfg.Environment).Info("chesspot is running")

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	clockRunner.Stop()

	log.Info("Shutdown completed")
	return nil
}
