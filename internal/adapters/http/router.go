package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
	"github.com/mkravets/fin-advisor-agent/internal/observability/metrics"
)

type Router struct {
	query   ports.QueryService
	updater ports.KnowledgeBaseUpdater
	queue   ports.JobQueue
	metrics *metrics.HTTPServerMetrics
	service string
	logger  *slog.Logger
}

func NewRouter(
	query ports.QueryService,
	updater ports.KnowledgeBaseUpdater,
	queue ports.JobQueue,
	serverMetrics *metrics.HTTPServerMetrics,
	service string,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		query:   query,
		updater: updater,
		queue:   queue,
		metrics: serverMetrics,
		service: service,
		logger:  logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.HandleFunc("/v1/kb/update", rt.updateFromWeb)
	mux.HandleFunc("/v1/kb/ingest-files", rt.ingestFiles)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
		ChatID    string `json:"chat_id"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.query.Answer(r.Context(), domain.QueryRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		ChatID:    req.ChatID,
		Question:  req.Question,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.recordQueryMetrics(answer, time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

// updateFromWeb is the "update knowledge base from web" trigger. The default
// is a synchronous run that reports the chunk count; mode=async enqueues a
// job for the worker instead.
func (rt *Router) updateFromWeb(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if r.URL.Query().Get("mode") == "async" {
		if rt.queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job queue is not configured"})
			return
		}
		batchID := newBatchID()
		if err := rt.queue.PublishKnowledgeBaseUpdate(r.Context(), batchID); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID, "status": "queued"})
		return
	}

	batch, err := rt.updater.IngestWeb(r.Context())
	rt.writeBatchResult(w, batch, err)
}

func (rt *Router) ingestFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	batch, err := rt.updater.IngestFiles(r.Context())
	rt.writeBatchResult(w, batch, err)
}

// writeBatchResult reports partial ingestion with the durable count instead
// of hiding it behind a bare error.
func (rt *Router) writeBatchResult(w http.ResponseWriter, batch *domain.IngestionBatch, err error) {
	if err != nil {
		var partial *domain.IngestionPartialError
		if errors.As(err, &partial) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":         err.Error(),
				"batch":         batch,
				"stored_chunks": partial.StoredChunks,
			})
			return
		}
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (rt *Router) recordQueryMetrics(answer *domain.QueryAnswer, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQuery(rt.service, string(answer.Strategy), string(answer.Route), string(answer.State), duration)
	rt.metrics.RecordCitations(rt.service, len(answer.Citations))
	if answer.StrategyFellBack {
		rt.metrics.RecordStrategyFallback(rt.service, string(answer.Strategy))
	}
	if answer.PlanHeuristic {
		rt.metrics.RecordHeuristicPlan(rt.service)
	}
	for _, call := range answer.ToolCalls {
		status := "ok"
		switch {
		case call.ValidationStatus == domain.ValidationRejected:
			status = "rejected"
		case call.Error != "":
			status = "error"
		}
		rt.metrics.RecordToolCall(rt.service, call.Tool, status)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write_response_failed", "error", err)
	}
}
