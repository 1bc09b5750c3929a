package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"listraksync/internal/api"
	"listraksync/internal/app"
	"listraksync/internal/config"
	"listraksync/internal/database"
	"listraksync/internal/logging"
	"listraksync/internal/metrics"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init connector")
		return err
	}
	defer (func() { _ = a.Close() })()

	if a.InProcessQueue() {
		logger.Warn().Msg("redis unavailable, sync jobs are queued in process and lost on restart")
	}

	metrics.Register()

	var wg sync.WaitGroup
	startBackground(ctx, &wg, a, cfg, &logger)

	httpServer := startHTTP(cfg, a, &logger)

	logger.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Dur("retry_interval", cfg.Worker.RetryInterval).
		Bool("api", cfg.API.Enabled).
		Msg("listrak worker started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	wg.Wait()
	logger.Info().Msg("listrak worker stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "worker-main").Logger()

	return cfg, logger, closer, nil
}

func startBackground(ctx context.Context, wg *sync.WaitGroup, a *app.App, cfg *config.Config, logger *zerolog.Logger) {
	backup := database.NewBackupService(a.DB, cfg.Backup, logging.Component(logger, "backup"))

	for _, start := range []func(context.Context){
		a.Worker.Start,
		a.Sweeper.Start,
		backup.Start,
	} {
		wg.Add(1)
		go func(start func(context.Context)) {
			defer wg.Done()
			start(ctx)
		}(start)
	}
}

func startHTTP(cfg *config.Config, a *app.App, logger *zerolog.Logger) *api.HTTPServer {
	if !cfg.API.Enabled {
		return nil
	}

	srv := api.NewHTTPServer(cfg.API, a.Service, a.DB, a.Bus, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	return srv
}
