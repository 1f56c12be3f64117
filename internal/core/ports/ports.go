package ports

import (
	"context"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

// Embedder builds vectors for chunks and query text. The same embedder must
// be used at ingestion and at query time.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore indexes document chunks and performs nearest-neighbor search.
// Upsert is idempotent by chunk id and reports how many chunks were actually
// new. Search against an empty store returns an empty slice, never an error.
type ChunkStore interface {
	Upsert(ctx context.Context, chunks []domain.DocumentChunk) (int, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	Search(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.RetrievalResult, error)
}

// TextGenerator is the language-model completion contract.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Retriever turns a query into a ranked set of relevant chunks.
type Retriever interface {
	Name() domain.StrategyName
	Retrieve(ctx context.Context, query string, k int) (domain.RetrievalOutcome, error)
}

// SessionStore is the keyed store behind per-session strategy assignment.
// PutIfAbsent returns the winning strategy, which may differ from the
// candidate when another writer got there first.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (domain.StrategyName, bool, error)
	PutIfAbsent(ctx context.Context, sessionID string, strategy domain.StrategyName) (domain.StrategyName, error)
}

// MarketDataProvider serves live quote and company data keyed by ticker.
type MarketDataProvider interface {
	Quote(ctx context.Context, ticker string) (*domain.Quote, error)
	CompanyProfile(ctx context.Context, ticker string) (*domain.CompanyProfile, error)
}

// NewsFetcher lists and fetches recent articles below a topic index page.
type NewsFetcher interface {
	LatestArticles(ctx context.Context, indexURL string, limit int) ([]domain.Article, error)
}

// PageExtractor extracts per-page plain text from a local source file.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]domain.SourcePage, error)
}

// Chunker splits one page of text into overlapping windows.
type Chunker interface {
	Split(text string) []string
}

// HistoryStore appends answered exchanges to external chat history.
type HistoryStore interface {
	AppendExchange(ctx context.Context, userID, chatID string, record domain.HistoryRecord) error
}

// JobQueue publishes and consumes knowledge-base update jobs.
type JobQueue interface {
	PublishKnowledgeBaseUpdate(ctx context.Context, batchID string) error
	SubscribeKnowledgeBaseUpdate(ctx context.Context, handler func(context.Context, string) error) error
}

// QueryService is the inbound contract for answering one user query.
type QueryService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryAnswer, error)
}

// KnowledgeBaseUpdater is the inbound contract for ingestion runs.
type KnowledgeBaseUpdater interface {
	IngestFiles(ctx context.Context) (*domain.IngestionBatch, error)
	IngestWeb(ctx context.Context) (*domain.IngestionBatch, error)
}
