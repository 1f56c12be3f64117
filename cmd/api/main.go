package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/mkravets/fin-advisor-agent/internal/adapters/http"
	"github.com/mkravets/fin-advisor-agent/internal/bootstrap"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
	"github.com/mkravets/fin-advisor-agent/internal/observability/metrics"
)

const serviceName = "fin-advisor-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics(serviceName)

	// A typed nil queue must stay a nil interface so the router can tell
	// async updates are unavailable.
	var queue ports.JobQueue
	if app.Queue != nil {
		queue = app.Queue
	}
	router := httpadapter.NewRouter(app.Router, app.Ingest, queue, serverMetrics, serviceName, app.Logger)

	server := &http.Server{
		Addr:              ":" + app.Config.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("api_listening", "port", app.Config.APIPort)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		app.Logger.Info("shutdown_signal_received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("server_failed", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("shutdown_failed", "error", err)
		os.Exit(1)
	}
	app.Logger.Info("api_stopped")
}
