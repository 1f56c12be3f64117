package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkravets/fin-advisor-agent/internal/config"
	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
	"github.com/mkravets/fin-advisor-agent/internal/core/usecase"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/chunking"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/extractor/pdfpage"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/llm/ollama"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/marketdata/yahoo"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/news"
	natsqueue "github.com/mkravets/fin-advisor-agent/internal/infrastructure/queue/nats"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/repository/memory"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/repository/postgres"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/resilience"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/vector/chromem"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/vector/qdrant"
	"github.com/mkravets/fin-advisor-agent/internal/observability/logging"
)

// App holds every wired component one process needs. The API serves queries
// and synchronous ingestion; the worker consumes queued update jobs. Both are
// built from the same wiring so they always share chunk ids, embeddings and
// store layout.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Router *usecase.AgentRouter
	Ingest *usecase.IngestUsecase

	// Queue is nil when NATS is unreachable at startup; the API then serves
	// synchronous ingestion only.
	Queue *natsqueue.Queue

	db *sql.DB
}

func New(ctx context.Context, service string) (*App, error) {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	llmClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(llmClient)
	generator := ollama.NewGenerator(llmClient)

	store, err := buildChunkStore(cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("build chunk store: %w", err)
	}

	app := &App{Config: cfg, Logger: logger}

	var sessions ports.SessionStore
	var history ports.HistoryStore
	if cfg.PostgresDSN == "" {
		logger.Warn("postgres_not_configured",
			"detail", "session assignments and chat history will not survive restarts")
		sessions = memory.NewSessionStore()
	} else {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.db = db

		sessionRepo := postgres.NewSessionRepository(db)
		if err := sessionRepo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		sessions = sessionRepo
		history = postgres.NewHistoryRepository(db)
	}

	standard := usecase.NewStandardRetriever(embedder, store)
	retrievers := []ports.Retriever{
		standard,
		usecase.NewCompressionRetriever(standard, generator, cfg.CompressionMultiplier, logger),
		usecase.NewMultiQueryRetriever(standard, generator, cfg.MultiQueryCount, logger),
	}
	selector := usecase.NewStrategySelector(sessions, time.Now().UnixNano())

	market := yahoo.New(cfg.MarketDataURL, cfg.MarketDataRPS, executor)
	registry := usecase.NewToolRegistry(
		usecase.NewPriceLookupTool(market),
		usecase.NewCompanyInfoTool(market),
		usecase.NewProjectionTool(),
	)

	app.Router = usecase.NewAgentRouter(selector, retrievers, registry, generator, history, domain.RouterLimits{
		PlanTimeout:      time.Duration(cfg.PlanTimeoutSeconds) * time.Second,
		RetrieveTimeout:  time.Duration(cfg.RetrieveTimeoutSeconds) * time.Second,
		ToolTimeout:      time.Duration(cfg.ToolTimeoutSeconds) * time.Second,
		SynthesisTimeout: time.Duration(cfg.SynthesisTimeoutSeconds) * time.Second,
		PlanRetries:      cfg.PlanRetries,
		TopK:             cfg.RetrieveTopK,
	}, logger)

	topics, err := config.LoadTopics(cfg.TopicsPath, cfg.NewsMaxArticles)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	app.Ingest = usecase.NewIngestUsecase(
		pdfpage.New(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		store,
		news.NewFetcher(cfg.NewsRPS),
		cfg.KnowledgeBasePath,
		topics,
		cfg.IngestUpsertBatch,
		logger,
	)

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		logger.Warn("nats_unavailable", "url", cfg.NATSURL, "error", err)
	} else {
		app.Queue = queue
	}

	return app, nil
}

func buildChunkStore(cfg config.Config, executor *resilience.Executor) (ports.ChunkStore, error) {
	switch cfg.VectorBackend {
	case "chromem":
		return chromem.NewStore(cfg.QdrantCollection)
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Warn("close_postgres_failed", "error", err)
		}
	}
}
