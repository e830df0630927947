package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/backlogd/backlogd/internal/api"
	"github.com/backlogd/backlogd/internal/config"
	"github.com/backlogd/backlogd/internal/database"
	"github.com/backlogd/backlogd/internal/logger"
	"github.com/backlogd/backlogd/internal/startup"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		BufferSize: 1000,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting backlogd")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()

	applied, err := db.Migrate(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Int("applied", applied).Msg("database migrations complete")

	server, err := api.NewServer(db, cfg, clockwork.NewRealClock(), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create API server")
	}
	server.SetLogsProvider(log)

	if server.Catalog().IsConfigured() {
		err = startup.WithRetry(
			context.Background(),
			"catalog connectivity check",
			startup.DefaultRetryConfig(),
			server.Catalog().Test,
			log.Logger,
		)
		if err != nil {
			log.Warn().Err(err).Msg("catalog unreachable, discovery endpoints will fail until it recovers")
		}
	} else {
		log.Warn().Msg("Twitch credentials not configured, discovery endpoints are disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Address())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
