// anisub-relay is the stateless variant of the service: no database, no
// request cache. It polls the release feed and relays fresh groups to SSE,
// WebSocket and gRPC subscribers.
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
	"github.com/anisub/anisub/internal/hub"
	"github.com/anisub/anisub/internal/kitsu"
	"github.com/anisub/anisub/internal/logger"
	"github.com/anisub/anisub/internal/nyaa"
	"github.com/anisub/anisub/internal/poller"
	"github.com/anisub/anisub/internal/rpc"
	"github.com/anisub/anisub/internal/scheduler"
	"github.com/anisub/anisub/internal/scheduler/tasks"
)

const shutdownTimeout = 10 * time.Second

func main() {
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
		Msg("starting anisub relay")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broadcast := hub.New(log.Logger)
	feed := nyaa.NewClient(cfg.Nyaa.BaseURL, log.Logger)
	catalog := kitsu.NewClient(cfg.Kitsu.BaseURL, log.Logger)

	feedPoller := poller.NewTransient(feed, poller.NewTransientHandler(broadcast), log.Logger)

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

	apiServer := api.NewServer(nil, catalog, broadcast, nil, log.Logger)
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
