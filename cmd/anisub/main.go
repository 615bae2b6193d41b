package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/anisub/anisub/internal/api"
	"github.com/anisub/anisub/internal/config"
	"github.com/anisub/anisub/internal/database"
	"github.com/anisub/anisub/internal/hub"
	"github.com/anisub/anisub/internal/kitsu"
	"github.com/anisub/anisub/internal/logger"
	"github.com/anisub/anisub/internal/model"
	"github.com/anisub/anisub/internal/nyaa"
	"github.com/anisub/anisub/internal/poller"
	"github.com/anisub/anisub/internal/repository"
	"github.com/anisub/anisub/internal/requestcache"
	"github.com/anisub/anisub/internal/rpc"
	"github.com/anisub/anisub/internal/scheduler"
	"github.com/anisub/anisub/internal/scheduler/tasks"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	log.Info().
		Str("logLevel", cfg.Logging.Level).
		Str("address", cfg.Server.Address()).
		Msg("starting anisub")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := repository.NewDownloads(db.Conn(), log.Logger)
	broadcast := hub.New(log.Logger)
	cache := requestcache.New[[]model.DownloadGroup](requestcache.DefaultTTL)

	feed := nyaa.NewClient(cfg.Nyaa.BaseURL, log.Logger)
	catalog := kitsu.NewClient(cfg.Kitsu.BaseURL, log.Logger)

	handler := poller.NewPersistentHandler(repo, broadcast, cache)
	feedPoller, err := poller.NewPersistent(ctx, feed, repo, handler, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed poller watermark")
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterPollTask(sched, feedPoller, cfg.Poller.IntervalMin); err != nil {
		log.Fatal().Err(err).Msg("failed to register poll task")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	apiServer := api.NewServer(repo, catalog, broadcast, cache, log.Logger)
	grpcServer := rpc.NewServer(broadcast, log.Logger)

	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: rpc.Mux(grpcServer, apiServer.Handler()),
	}

	go func() {
		log.Info().Str("address", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	grpcServer.GracefulStop()
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}

	log.Info().Msg("stopped")
}
