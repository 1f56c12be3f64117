package usecase

import (
	"context"
	"fmt"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
)

// StandardRetriever embeds the query once and searches the chunk store
// directly. It is the baseline the advanced strategies degrade to.
type StandardRetriever struct {
	embedder ports.Embedder
	store    ports.ChunkStore
}

func NewStandardRetriever(embedder ports.Embedder, store ports.ChunkStore) *StandardRetriever {
	return &StandardRetriever{embedder: embedder, store: store}
}

func (r *StandardRetriever) Name() domain.StrategyName {
	return domain.StrategyStandard
}

func (r *StandardRetriever) Retrieve(ctx context.Context, query string, k int) (domain.RetrievalOutcome, error) {
	results, err := r.search(ctx, query, k)
	if err != nil {
		return domain.RetrievalOutcome{}, err
	}
	return domain.RetrievalOutcome{
		Results:  results,
		Strategy: domain.StrategyStandard,
	}, nil
}

func (r *StandardRetriever) search(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.Search(ctx, vector, k, domain.SearchFilter{})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	for i := range results {
		results[i].Strategy = domain.StrategyStandard
	}
	return results, nil
}
