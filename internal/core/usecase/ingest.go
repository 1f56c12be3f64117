package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mkravets/fin-advisor-agent/internal/config"
	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
)

// IngestUsecase turns local files or freshly fetched web articles into
// stored chunks. Chunk ids are derived from content before any embedding, so
// already-stored chunks are skipped without paying for their vectors, and a
// rerun over identical content stores nothing new.
type IngestUsecase struct {
	extractor ports.PageExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.ChunkStore
	news      ports.NewsFetcher

	knowledgeBasePath string
	topics            []config.Topic
	upsertBatch       int
	logger            *slog.Logger
}

func NewIngestUsecase(
	extractor ports.PageExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.ChunkStore,
	news ports.NewsFetcher,
	knowledgeBasePath string,
	topics []config.Topic,
	upsertBatch int,
	logger *slog.Logger,
) *IngestUsecase {
	if upsertBatch <= 0 {
		upsertBatch = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUsecase{
		extractor:         extractor,
		chunker:           chunker,
		embedder:          embedder,
		store:             store,
		news:              news,
		knowledgeBasePath: knowledgeBasePath,
		topics:            topics,
		upsertBatch:       upsertBatch,
		logger:            logger,
	}
}

func (u *IngestUsecase) IngestFiles(ctx context.Context) (*domain.IngestionBatch, error) {
	batch := newBatch(domain.SourceFiles)

	entries, err := os.ReadDir(u.knowledgeBasePath)
	if err != nil {
		return batch, domain.WrapError(domain.ErrInvalidInput, "list knowledge base",
			fmt.Errorf("read dir %s: %w", u.knowledgeBasePath, err))
	}

	items := make([]domain.SourceItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !supportedExtension(entry.Name()) {
			continue
		}
		batch.Items++

		pages, err := u.extractor.ExtractPages(ctx, filepath.Join(u.knowledgeBasePath, entry.Name()))
		if err != nil {
			u.logger.Warn("source_extraction_failed", "file", entry.Name(), "error", err)
			batch.FailedItems++
			continue
		}
		items = append(items, domain.SourceItem{Name: entry.Name(), Pages: pages})
	}

	if err := u.ingestItems(ctx, batch, items); err != nil {
		return batch, err
	}
	return batch, nil
}

func (u *IngestUsecase) IngestWeb(ctx context.Context) (*domain.IngestionBatch, error) {
	batch := newBatch(domain.SourceWeb)
	if u.news == nil || len(u.topics) == 0 {
		return batch, nil
	}

	items := make([]domain.SourceItem, 0, len(u.topics)*4)
	for _, topic := range u.topics {
		articles, err := u.news.LatestArticles(ctx, topic.URL, topic.MaxArticles)
		if err != nil {
			u.logger.Warn("topic_fetch_failed", "topic", topic.Name, "error", err)
			batch.FailedItems++
			continue
		}
		for _, article := range articles {
			batch.Items++
			items = append(items, domain.SourceItem{
				Name: articleSourceName(article),
				// Web articles have no pagination; everything is page 0.
				Pages: []domain.SourcePage{{Number: 0, Text: article.Body}},
			})
		}
	}

	if err := u.ingestItems(ctx, batch, items); err != nil {
		return batch, err
	}
	return batch, nil
}

// ingestItems chunks page by page, drops chunks already stored, embeds the
// remainder and upserts in bounded batches. On a mid-run failure everything
// stored before the failure point stays stored and the error reports the
// durable count.
func (u *IngestUsecase) ingestItems(ctx context.Context, batch *domain.IngestionBatch, items []domain.SourceItem) error {
	chunks := make([]domain.DocumentChunk, 0, len(items)*8)
	seen := make(map[string]struct{})
	for _, item := range items {
		for _, page := range item.Pages {
			for _, window := range u.chunker.Split(page.Text) {
				id := domain.ChunkID(item.Name, page.Number, window)
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				chunks = append(chunks, domain.DocumentChunk{
					ID:         id,
					SourceName: item.Name,
					PageNumber: page.Number,
					Text:       window,
				})
			}
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, 0, len(chunks))
	for i := range chunks {
		ids = append(ids, chunks[i].ID)
	}
	existing, err := u.store.ExistingIDs(ctx, ids)
	if err != nil {
		return u.partial(batch, fmt.Errorf("probe existing chunks: %w", err))
	}

	fresh := make([]domain.DocumentChunk, 0, len(chunks))
	for i := range chunks {
		batch.ProducedChunkIDs = append(batch.ProducedChunkIDs, chunks[i].ID)
		if _, ok := existing[chunks[i].ID]; ok {
			batch.ChunksSkipped++
			continue
		}
		fresh = append(fresh, chunks[i])
	}

	for start := 0; start < len(fresh); start += u.upsertBatch {
		end := start + u.upsertBatch
		if end > len(fresh) {
			end = len(fresh)
		}
		window := fresh[start:end]

		texts := make([]string, 0, len(window))
		for i := range window {
			texts = append(texts, window[i].Text)
		}
		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return u.partial(batch, fmt.Errorf("embed chunks: %w", err))
		}
		if len(vectors) != len(window) {
			return u.partial(batch, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(window)))
		}
		for i := range window {
			window[i].Vector = vectors[i]
		}

		inserted, err := u.store.Upsert(ctx, window)
		if err != nil {
			return u.partial(batch, fmt.Errorf("upsert chunks: %w", err))
		}
		batch.ChunksInserted += inserted
		batch.ChunksSkipped += len(window) - inserted
	}

	u.logger.Info("ingestion_batch_done",
		"batch_id", batch.ID,
		"source", string(batch.Source),
		"items", batch.Items,
		"failed_items", batch.FailedItems,
		"inserted", batch.ChunksInserted,
		"skipped", batch.ChunksSkipped,
	)
	return nil
}

func (u *IngestUsecase) partial(batch *domain.IngestionBatch, cause error) error {
	u.logger.Error("ingestion_batch_partial",
		"batch_id", batch.ID,
		"source", string(batch.Source),
		"stored", batch.ChunksInserted,
		"error", cause,
	)
	return &domain.IngestionPartialError{
		StoredChunks: batch.ChunksInserted,
		Cause:        cause,
	}
}

func newBatch(source domain.SourceType) *domain.IngestionBatch {
	return &domain.IngestionBatch{
		ID:               uuid.NewString(),
		Source:           source,
		ProducedChunkIDs: []string{},
	}
}

func supportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md":
		return true
	default:
		return false
	}
}

func articleSourceName(article domain.Article) string {
	title := strings.TrimSpace(article.Title)
	if title == "" {
		return article.URL
	}
	return fmt.Sprintf("%s (%s)", title, article.URL)
}
