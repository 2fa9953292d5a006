package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/elibrary/apigateway/internal/config"
	"github.com/elibrary/apigateway/internal/observability"
)

// runGateway runs the gateway until SIGINT or SIGTERM.
func runGateway(app *application, logger observability.Logger) {
	if err := app.gateway.Start(context.Background()); err != nil {
		fatalWithSync(logger, "failed to start gateway", observability.Error(err))
		return // unreachable in production; allows test to continue
	}

	app.startSweeper(logger)
	startMetricsServerIfEnabled(app, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	waitForShutdown(app, sigCh, logger)
}

// waitForShutdown waits for a signal and performs graceful shutdown.
func waitForShutdown(app *application, sigCh <-chan os.Signal, logger observability.Logger) {
	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	timeout := app.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if app.metricsServer != nil {
		logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := app.gateway.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	// Stop rate limiter sweeper goroutine
	app.rateLimiter.Stop()

	app.pool.CloseIdleConnections()

	logger.Info("shutdown complete")
}
