package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
)

// CompressionRetriever over-fetches, then asks the model to keep only the
// sentences of each chunk that bear on the query. Chunks that compress to
// nothing are dropped. Provenance survives compression untouched.
//
// If the model step fails the query degrades to the standard result set
// instead of failing, and the outcome says so.
type CompressionRetriever struct {
	standard   *StandardRetriever
	generator  ports.TextGenerator
	multiplier int
	logger     *slog.Logger
}

func NewCompressionRetriever(
	standard *StandardRetriever,
	generator ports.TextGenerator,
	multiplier int,
	logger *slog.Logger,
) *CompressionRetriever {
	if multiplier < 2 {
		multiplier = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CompressionRetriever{
		standard:   standard,
		generator:  generator,
		multiplier: multiplier,
		logger:     logger,
	}
}

func (r *CompressionRetriever) Name() domain.StrategyName {
	return domain.StrategyCompression
}

func (r *CompressionRetriever) Retrieve(ctx context.Context, query string, k int) (domain.RetrievalOutcome, error) {
	candidates, err := r.standard.search(ctx, query, k*r.multiplier)
	if err != nil {
		return domain.RetrievalOutcome{}, err
	}

	compressed, err := r.compress(ctx, query, candidates)
	if err != nil {
		r.logger.Warn("compression_fell_back",
			"strategy", string(domain.StrategyCompression),
			"error", err,
		)
		fallback := candidates
		if len(fallback) > k {
			fallback = fallback[:k]
		}
		for i := range fallback {
			fallback[i].Strategy = domain.StrategyCompression
		}
		return domain.RetrievalOutcome{
			Results:  fallback,
			Strategy: domain.StrategyCompression,
			FellBack: true,
		}, nil
	}

	if len(compressed) > k {
		compressed = compressed[:k]
	}
	return domain.RetrievalOutcome{
		Results:  compressed,
		Strategy: domain.StrategyCompression,
	}, nil
}

func (r *CompressionRetriever) compress(
	ctx context.Context,
	query string,
	candidates []domain.RetrievalResult,
) ([]domain.RetrievalResult, error) {
	out := make([]domain.RetrievalResult, 0, len(candidates))
	for _, candidate := range candidates {
		extracted, err := r.generator.GenerateText(ctx, buildCompressionPrompt(query, candidate.Chunk.Text))
		if err != nil {
			return nil, err
		}
		extracted = strings.TrimSpace(extracted)
		if extracted == "" || strings.EqualFold(extracted, compressionEmptyMarker) {
			continue
		}

		result := candidate
		result.Chunk.Text = extracted
		result.Strategy = domain.StrategyCompression
		out = append(out, result)
	}
	return out, nil
}
