package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backboard/internal/config"
	"backboard/internal/engine"
	"backboard/internal/httpapi"
	"backboard/internal/restore"
	"backboard/internal/run"
	"backboard/internal/share"
	"backboard/internal/util"
)

func main() {
	cfgPath := os.Getenv("BACKBOARD_CONFIG")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engineClient := engine.NewClient(
		cfg.Engine.BaseURL,
		time.Duration(cfg.Engine.TimeoutSeconds)*time.Second,
		logger,
	)

	// The engine may still be coming up alongside us; probe with backoff
	// before serving so early runs don't fail for no reason.
	if err := util.Retry(ctx, 5, time.Second, func() error {
		return engineClient.Health(ctx)
	}); err != nil {
		logger.Warn("engine health check failed, continuing anyway", "error", err)
	}

	coord := run.NewCoordinator(engineClient, logger)

	loc, err := share.ParseLocation(cfg.Share.BaseURL)
	if err != nil {
		log.Fatalf("invalid share base URL %q: %v", cfg.Share.BaseURL, err)
	}

	restorer := restore.NewRestorer(coord, time.Duration(cfg.Restore.DelayMS)*time.Millisecond, logger)

	// A configured startup URL is restored exactly as if a user opened it.
	if cfg.Restore.StartupURL != "" {
		if state := restorer.RestoreURL(ctx, cfg.Restore.StartupURL); state != nil {
			logger.Info("restored startup state", "mode", string(state.Mode))
		}
	}

	srv := httpapi.NewDashboardServer(coord, restorer, loc, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("backboard server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down backboard server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
