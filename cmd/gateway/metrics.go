package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/elibrary/apigateway/internal/observability"
)

// createMetricsServer creates the metrics HTTP server.
func createMetricsServer(
	addr string,
	path string,
	metrics *observability.Metrics,
	logger observability.Logger,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	logger.Info("starting metrics server",
		observability.String("address", addr),
		observability.String("metrics_path", path),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runMetricsServer runs the metrics HTTP server.
func runMetricsServer(server *http.Server, logger observability.Logger) {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// startMetricsServerIfEnabled starts the metrics server if enabled.
func startMetricsServerIfEnabled(app *application, logger observability.Logger) {
	m := app.config.Metrics
	if !m.Enabled {
		return
	}

	app.metricsServer = createMetricsServer(m.Addr, m.Path, app.metrics, logger)
	go runMetricsServer(app.metricsServer, logger)
}
