package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridge-standings/internal/config"
	"bridge-standings/internal/database"
	"bridge-standings/internal/logging"
	"bridge-standings/internal/metrics"
	"bridge-standings/internal/server"
	"bridge-standings/internal/service"
	"bridge-standings/internal/shared"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting standings server", zap.String("addr", cfg.Server.Addr), zap.String("driver", cfg.Database.Driver))

	db, err := database.New(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()

	var hub *server.Hub
	tournament := service.New(db, logger,
		service.WithEnforcedSchedule(cfg.Tournament.EnforceSchedule),
		service.WithMetrics(m),
		service.WithOnChange(func(snap shared.Snapshot) {
			hub.BroadcastSnapshot(snap)
		}),
	)
	hub = server.NewHub(tournament, logger, m, cfg.Server.AllowedOrigins)
	go hub.Run(ctx)

	res, err := tournament.Load(ctx)
	if err != nil {
		return err
	}
	if res.Fallback {
		logger.Warn("Serving fallback standings", zap.String("source", string(res.Source)))
	}

	if cfg.Sync.PollInterval > 0 {
		go tournament.Poll(ctx, cfg.Sync.PollInterval)
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.NewRouter(tournament, hub, m, logger, server.RouterOptions{
			StaticDir:      cfg.Server.StaticDir,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
