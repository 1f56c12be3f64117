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

	"github.com/mkravets/fin-advisor-agent/internal/bootstrap"
	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/observability/metrics"
)

const serviceName = "fin-advisor-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue == nil {
		app.Logger.Error("nats_required", "detail", "the worker cannot run without a job queue")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := startMetricsServer(app.Logger, app.Config.WorkerMetricsPort, workerMetrics)
	defer stopMetricsServer(app.Logger, metricsServer)

	handler := func(jobCtx context.Context, batchID string) error {
		app.Logger.Info("kb_update_started", "batch_id", batchID)
		start := time.Now()
		workerMetrics.StartBatch()

		batch, err := app.Ingest.IngestWeb(jobCtx)
		workerMetrics.FinishBatch(serviceName, string(domain.SourceWeb), time.Since(start), err)
		if batch != nil {
			workerMetrics.ObserveChunks(serviceName, string(domain.SourceWeb), batch.ChunksInserted, batch.ChunksSkipped)
			var partial *domain.IngestionPartialError
			if errors.As(err, &partial) {
				app.Logger.Error("kb_update_partial",
					"batch_id", batchID,
					"stored_chunks", partial.StoredChunks,
				)
			}
		}
		return err
	}

	app.Logger.Info("worker_listening", "subject", app.Config.NATSSubject)
	if err := app.Queue.SubscribeKnowledgeBaseUpdate(ctx, handler); err != nil {
		app.Logger.Error("subscription_failed", "error", err)
		os.Exit(1)
	}
	app.Logger.Info("worker_stopped")
}

func startMetricsServer(logger *slog.Logger, port string, workerMetrics *metrics.WorkerMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	return server
}

func stopMetricsServer(logger *slog.Logger, server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("worker_metrics_shutdown_failed", "error", err)
	}
}
