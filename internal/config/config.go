package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	KnowledgeBasePath string
	TopicsPath        string

	ChunkSize    int
	ChunkOverlap int

	RetrieveTopK          int
	MultiQueryCount       int
	CompressionMultiplier int

	MarketDataURL     string
	MarketDataRPS     float64
	NewsRPS           float64
	NewsMaxArticles   int
	IngestUpsertBatch int

	PlanTimeoutSeconds      int
	RetrieveTimeoutSeconds  int
	ToolTimeoutSeconds      int
	SynthesisTimeoutSeconds int
	PlanRetries             int

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "knowledgebase.update"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		VectorBackend:    mustEnv("VECTOR_BACKEND", "qdrant"),
		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "kb_chunks"),

		KnowledgeBasePath: mustEnv("KNOWLEDGE_BASE_PATH", "./data/knowledge_base"),
		TopicsPath:        mustEnv("TOPICS_PATH", "./config/topics.yaml"),

		ChunkSize:    mustEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 150),

		RetrieveTopK:          mustEnvInt("RETRIEVE_TOP_K", 4),
		MultiQueryCount:       mustEnvInt("MULTI_QUERY_COUNT", 3),
		CompressionMultiplier: mustEnvInt("COMPRESSION_MULTIPLIER", 3),

		MarketDataURL:     mustEnv("MARKET_DATA_URL", "https://query1.finance.yahoo.com"),
		MarketDataRPS:     mustEnvFloat("MARKET_DATA_RPS", 5),
		NewsRPS:           mustEnvFloat("NEWS_RPS", 2),
		NewsMaxArticles:   mustEnvInt("NEWS_MAX_ARTICLES", 5),
		IngestUpsertBatch: mustEnvInt("INGEST_UPSERT_BATCH", 64),

		PlanTimeoutSeconds:      mustEnvInt("PLAN_TIMEOUT_SECONDS", 20),
		RetrieveTimeoutSeconds:  mustEnvInt("RETRIEVE_TIMEOUT_SECONDS", 30),
		ToolTimeoutSeconds:      mustEnvInt("TOOL_TIMEOUT_SECONDS", 15),
		SynthesisTimeoutSeconds: mustEnvInt("SYNTHESIS_TIMEOUT_SECONDS", 60),
		PlanRetries:             mustEnvInt("PLAN_RETRIES", 2),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
