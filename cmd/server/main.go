package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/api"
	"github.com/patrickwarner/adbroker/internal/app"
	"github.com/patrickwarner/adbroker/internal/config"
	"github.com/patrickwarner/adbroker/internal/observability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdownTracing()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	a, err := app.Build(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(drainCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	srvDeps := api.NewServer(logger, a.Registry, a.Broker, a.GeoIP, metricsRegistry, cfg.DebugTrace, cfg.DegradedStatus)
	r := srvDeps.Router()
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "adbroker"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Ad broker running",
		zap.String("addr", addr),
		zap.Int("ad_units", a.Registry.Len()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
