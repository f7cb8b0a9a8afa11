package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/app"
	"github.com/patrickwarner/adbroker/internal/config"
	"github.com/patrickwarner/adbroker/internal/observability"
)

func main() {
	cfg := config.Load()

	// stdout carries the protocol, so logs go to stderr
	logger, err := observability.InitStderrLogger(cfg.ServiceName + "-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, cfg); err != nil {
		logger.Error("mcp server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, observability.NewNoOpRegistry())
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

	server := newMCPServer(&BrokerTools{registry: a.Registry, broker: a.Broker, logger: logger})

	var transport mcp.Transport = &mcp.StdioTransport{}
	if os.Getenv("MCP_LOG_PROTOCOL") != "" {
		transport = &mcp.LoggingTransport{Transport: transport, Writer: os.Stderr}
	}

	logger.Info("MCP server running via stdio", zap.Int("ad_units", a.Registry.Len()))
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
