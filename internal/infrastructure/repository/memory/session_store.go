package memory

import (
	"context"
	"sync"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

// SessionStore is the in-process fallback when no database is configured.
// Assignments survive only for the lifetime of the process.
type SessionStore struct {
	mu         sync.RWMutex
	strategies map[string]domain.StrategyName
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		strategies: make(map[string]domain.StrategyName),
	}
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.StrategyName, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.strategies[sessionID]
	return strategy, ok, nil
}

func (s *SessionStore) PutIfAbsent(_ context.Context, sessionID string, strategy domain.StrategyName) (domain.StrategyName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.strategies[sessionID]; ok {
		return existing, nil
	}
	s.strategies[sessionID] = strategy
	return strategy, nil
}
