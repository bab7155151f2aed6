package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqr-backend/internal/bootstrap"
	"docqr-backend/internal/shared/config"
	"docqr-backend/internal/shared/server"
	"docqr-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("api.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("api.listening", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			telemetry.Error("api.serve_failed", map[string]any{"error": err.Error()})
		}
	case <-ctx.Done():
		telemetry.Info("api.shutting_down", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Warn("api.http_shutdown_failed", map[string]any{"error": err.Error()})
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		telemetry.Warn("api.app_shutdown_failed", map[string]any{"error": err.Error()})
	}
}
