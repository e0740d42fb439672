package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inputbid-service/internal/adapters/api"
	"inputbid-service/internal/adapters/broadcaster"
	"inputbid-service/internal/adapters/db"
	"inputbid-service/internal/adapters/redis"
	"inputbid-service/internal/adapters/scheduler"
	"inputbid-service/internal/app"
	"inputbid-service/internal/config"

	"code.cloudfoundry.org/clock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server with the deadline scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	log.Info().Msg("Starting Input Bid Service...")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(cfg.Database); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.Database.Driver).Msg("Database migrations applied")
	}

	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	log.Info().Msg("Database connection established")

	repos := db.NewRepositoryFactory(dbConn).GetAllRepositories()

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info().Msg("Redis connection established")

	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	defer redisBroadcaster.Close()

	systemClock := clock.NewClock()
	notifier := app.NewNotifier(app.NotifierParams{
		Broadcaster: redisBroadcaster,
		Logger:      log.Logger,
	})

	requestService := app.NewRequestService(app.RequestServiceParams{
		Store:    repos.Store,
		Access:   repos.AccessGate,
		Notifier: notifier,
		Clock:    systemClock,
		Logger:   log.Logger,
	})
	offerService := app.NewOfferService(app.OfferServiceParams{
		Store:    repos.Store,
		Access:   repos.AccessGate,
		Notifier: notifier,
		Clock:    systemClock,
		Logger:   log.Logger,
	})
	coordinator := app.NewAcceptanceCoordinator(app.AcceptanceCoordinatorParams{
		Store:    repos.Store,
		Notifier: notifier,
		Clock:    systemClock,
		Logger:   log.Logger,
	})
	log.Info().Msg("Business services initialized")

	deadlineScheduler := scheduler.NewDeadlineScheduler(scheduler.DeadlineSchedulerParams{
		RedisClient: redisClient,
		Closer:      requestService,
		Clock:       systemClock,
		Interval:    cfg.Scheduler.Interval,
		Logger:      log.Logger,
	})
	requestService.SetScheduler(deadlineScheduler)

	if err := requestService.RestoreDeadlines(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to restore bidding deadlines")
	}
	deadlineScheduler.Start()
	log.Info().Msg("Deadline scheduler started")

	server := api.NewServer(api.ServerParams{
		Config:      cfg,
		Requests:    requestService,
		Offers:      offerService,
		Acceptance:  coordinator,
		Broadcaster: redisBroadcaster,
		Logger:      log.Logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start HTTP server")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	deadlineScheduler.Stop()
	log.Info().Msg("Deadline scheduler stopped")

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	}

	log.Info().Msg("Graceful shutdown completed")
	return nil
}
