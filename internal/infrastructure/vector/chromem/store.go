package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

// Store is an embedded in-process ChunkStore for single-node deployments
// where running a qdrant instance is not worth it. Vectors are computed by
// the caller, so the collection is created without an embedding function.
type Store struct {
	db         *chromemgo.DB
	collection *chromemgo.Collection

	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewStore(collectionName string) (*Store, error) {
	db := chromemgo.NewDB()
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", collectionName, err)
	}
	return &Store{
		db:         db,
		collection: collection,
		ids:        make(map[string]struct{}),
	}, nil
}

func (s *Store) Upsert(ctx context.Context, chunks []domain.DocumentChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]chromemgo.Document, 0, len(chunks))
	inserted := 0
	for i := range chunks {
		if len(chunks[i].Vector) == 0 {
			return 0, fmt.Errorf("chunk %s has no vector", chunks[i].ID)
		}
		if _, ok := s.ids[chunks[i].ID]; ok {
			continue
		}
		inserted++
		docs = append(docs, chromemgo.Document{
			ID:      chunks[i].ID,
			Content: chunks[i].Text,
			Metadata: map[string]string{
				"source_name": chunks[i].SourceName,
				"page_number": strconv.Itoa(chunks[i].PageNumber),
			},
			Embedding: chunks[i].Vector,
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "chromem add documents", err)
	}
	for _, doc := range docs {
		s.ids[doc.ID] = struct{}{}
	}
	return inserted, nil
}

func (s *Store) ExistingIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.ids[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) Search(
	ctx context.Context,
	queryVector []float32,
	k int,
	filter domain.SearchFilter,
) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	stored := len(s.ids)
	s.mu.RUnlock()

	// chromem rejects a query asking for more results than stored documents.
	if k > stored {
		k = stored
	}
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	opts := chromemgo.QueryOptions{
		QueryEmbedding: queryVector,
		NResults:       k,
	}
	if filter.SourceName != "" {
		opts.Where = map[string]string{"source_name": filter.SourceName}
	}

	results, err := s.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "chromem query", err)
	}

	out := make([]domain.RetrievalResult, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata["page_number"])
		out = append(out, domain.RetrievalResult{
			Chunk: domain.DocumentChunk{
				ID:         r.ID,
				SourceName: r.Metadata["source_name"],
				PageNumber: page,
				Text:       r.Content,
			},
			Score: float64(r.Similarity),
		})
	}
	return out, nil
}
