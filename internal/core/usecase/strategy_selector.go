package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
)

// StrategySelector assigns one retrieval strategy per session, uniformly at
// random on first sight, then returns the same strategy for the session's
// whole lifetime. The session store is the single source of truth so
// assignments hold across processes.
type StrategySelector struct {
	store ports.SessionStore

	mu  sync.Mutex
	rng *rand.Rand
}

func NewStrategySelector(store ports.SessionStore, seed int64) *StrategySelector {
	return &StrategySelector{
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *StrategySelector) Assign(ctx context.Context, sessionID string) (domain.StrategyName, error) {
	if sessionID == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "assign strategy",
			fmt.Errorf("empty session id"))
	}

	existing, found, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session assignment: %w", err)
	}
	if found {
		return existing, nil
	}

	candidates := domain.AllStrategies()
	s.mu.Lock()
	candidate := candidates[s.rng.Intn(len(candidates))]
	s.mu.Unlock()

	// PutIfAbsent returns the winning assignment, which may belong to a
	// concurrent first query on the same session.
	winner, err := s.store.PutIfAbsent(ctx, sessionID, candidate)
	if err != nil {
		return "", fmt.Errorf("store session assignment: %w", err)
	}
	return winner, nil
}
