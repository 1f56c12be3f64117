package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

func TestAssignIsStablePerSession(t *testing.T) {
	selector := NewStrategySelector(newFakeSessionStore(), 42)
	ctx := context.Background()

	first, err := selector.Assign(ctx, "sess-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	for i := 0; i < 50; i++ {
		got, err := selector.Assign(ctx, "sess-1")
		if err != nil {
			t.Fatalf("assign repeat %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("assignment changed on call %d: %q then %q", i, first, got)
		}
	}
}

func TestAssignCoversAllStrategiesAcrossSessions(t *testing.T) {
	selector := NewStrategySelector(newFakeSessionStore(), 7)
	ctx := context.Background()

	seen := make(map[domain.StrategyName]int)
	for i := 0; i < 300; i++ {
		strategy, err := selector.Assign(ctx, fmt.Sprintf("sess-%d", i))
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		seen[strategy]++
	}
	for _, strategy := range domain.AllStrategies() {
		if seen[strategy] == 0 {
			t.Fatalf("strategy %q never assigned across 300 sessions", strategy)
		}
	}
}

func TestAssignHonorsExistingAssignment(t *testing.T) {
	store := newFakeSessionStore()
	store.strategies["sess-1"] = domain.StrategyMultiQuery

	selector := NewStrategySelector(store, 1)
	strategy, err := selector.Assign(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if strategy != domain.StrategyMultiQuery {
		t.Fatalf("expected stored assignment to win, got %q", strategy)
	}
}

func TestAssignRejectsEmptySessionID(t *testing.T) {
	selector := NewStrategySelector(newFakeSessionStore(), 1)
	if _, err := selector.Assign(context.Background(), ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}
