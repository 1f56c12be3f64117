package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
)

// MultiQueryRetriever asks the model for paraphrases of the query, retrieves
// for the original plus each paraphrase concurrently, and merges by chunk id
// keeping the best score. On equal scores the entry seen first in
// reformulation order wins, which keeps the merge deterministic.
type MultiQueryRetriever struct {
	standard  *StandardRetriever
	generator ports.TextGenerator
	count     int
	logger    *slog.Logger
}

func NewMultiQueryRetriever(
	standard *StandardRetriever,
	generator ports.TextGenerator,
	count int,
	logger *slog.Logger,
) *MultiQueryRetriever {
	if count < 1 {
		count = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiQueryRetriever{
		standard:  standard,
		generator: generator,
		count:     count,
		logger:    logger,
	}
}

func (r *MultiQueryRetriever) Name() domain.StrategyName {
	return domain.StrategyMultiQuery
}

func (r *MultiQueryRetriever) Retrieve(ctx context.Context, query string, k int) (domain.RetrievalOutcome, error) {
	reformulations, err := r.reformulate(ctx, query)
	if err != nil {
		r.logger.Warn("multi_query_fell_back",
			"strategy", string(domain.StrategyMultiQuery),
			"error", err,
		)
		results, serr := r.standard.search(ctx, query, k)
		if serr != nil {
			return domain.RetrievalOutcome{}, serr
		}
		for i := range results {
			results[i].Strategy = domain.StrategyMultiQuery
		}
		return domain.RetrievalOutcome{
			Results:  results,
			Strategy: domain.StrategyMultiQuery,
			FellBack: true,
		}, nil
	}

	queries := append([]string{query}, reformulations...)
	perQuery := make([][]domain.RetrievalResult, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			perQuery[i], errs[i] = r.standard.search(ctx, q, k)
		}(i, q)
	}
	wg.Wait()

	// A failed reformulation retrieval shrinks recall but must not sink the
	// query as long as at least one retrieval succeeded.
	succeeded := 0
	var lastErr error
	for i := range errs {
		if errs[i] == nil {
			succeeded++
		} else {
			lastErr = errs[i]
		}
	}
	if succeeded == 0 {
		return domain.RetrievalOutcome{}, lastErr
	}

	merged := mergeByChunkID(perQuery, k)
	for i := range merged {
		merged[i].Strategy = domain.StrategyMultiQuery
	}
	return domain.RetrievalOutcome{
		Results:  merged,
		Strategy: domain.StrategyMultiQuery,
	}, nil
}

func (r *MultiQueryRetriever) reformulate(ctx context.Context, query string) ([]string, error) {
	raw, err := r.generator.GenerateText(ctx, buildReformulationPrompt(query, r.count))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, r.count)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "0123456789.-) "))
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		out = append(out, line)
		if len(out) == r.count {
			break
		}
	}
	return out, nil
}

// mergeByChunkID deduplicates by chunk id keeping the maximum score. The
// first-seen position of each id breaks score ties and orders the output
// stably.
func mergeByChunkID(perQuery [][]domain.RetrievalResult, k int) []domain.RetrievalResult {
	type entry struct {
		result    domain.RetrievalResult
		firstSeen int
	}

	byID := make(map[string]*entry)
	order := 0
	for _, results := range perQuery {
		for _, result := range results {
			existing, ok := byID[result.Chunk.ID]
			if !ok {
				byID[result.Chunk.ID] = &entry{result: result, firstSeen: order}
				order++
				continue
			}
			if result.Score > existing.result.Score {
				existing.result = result
			}
		}
	}

	entries := make([]*entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].result.Score != entries[j].result.Score {
			return entries[i].result.Score > entries[j].result.Score
		}
		return entries[i].firstSeen < entries[j].firstSeen
	})

	if len(entries) > k {
		entries = entries[:k]
	}
	out := make([]domain.RetrievalResult, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.result)
	}
	return out
}
