package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
)

// AgentRouter answers one query end to end: assign the session's retrieval
// strategy, plan which sources to consult, run the document and tool
// branches concurrently, then synthesize a cited answer.
//
// A failed branch degrades the answer and is noted; only a planning failure
// after retries, or a synthesis failure, ends the query in the failed state.
type AgentRouter struct {
	selector   *StrategySelector
	retrievers map[domain.StrategyName]ports.Retriever
	registry   *ToolRegistry
	generator  ports.TextGenerator
	history    ports.HistoryStore
	limits     domain.RouterLimits
	logger     *slog.Logger
}

func NewAgentRouter(
	selector *StrategySelector,
	retrievers []ports.Retriever,
	registry *ToolRegistry,
	generator ports.TextGenerator,
	history ports.HistoryStore,
	limits domain.RouterLimits,
	logger *slog.Logger,
) *AgentRouter {
	byName := make(map[domain.StrategyName]ports.Retriever, len(retrievers))
	for _, retriever := range retrievers {
		byName[retriever.Name()] = retriever
	}
	if limits.PlanRetries < 0 {
		limits.PlanRetries = 0
	}
	if limits.TopK <= 0 {
		limits.TopK = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentRouter{
		selector:   selector,
		retrievers: byName,
		registry:   registry,
		generator:  generator,
		history:    history,
		limits:     limits,
		logger:     logger,
	}
}

func (r *AgentRouter) Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryAnswer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query",
			fmt.Errorf("empty question"))
	}

	strategy, err := r.selector.Assign(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	retriever, ok := r.retrievers[strategy]
	if !ok {
		return nil, fmt.Errorf("no retriever registered for strategy %q", strategy)
	}

	plan, err := r.plan(ctx, question)
	if err != nil {
		r.logger.Error("planning_failed",
			"session_id", req.SessionID,
			"error", err,
		)
		return &domain.QueryAnswer{
			Answer:    planningFailedApology,
			Citations: []domain.Citation{},
			ToolCalls: []domain.ToolCall{},
			Strategy:  strategy,
			State:     domain.StateFailed,
		}, nil
	}
	if plan.Heuristic {
		r.logger.Warn("heuristic_plan_used", "session_id", req.SessionID, "route", string(plan.Route))
	}

	var (
		wg       sync.WaitGroup
		outcome  domain.RetrievalOutcome
		docErr   error
		toolWork []domain.ToolCall
		toolOut  []string
	)

	if plan.Route == domain.RouteDocuments || plan.Route == domain.RouteBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			retrieveCtx, cancel := withTimeout(ctx, r.limits.RetrieveTimeout)
			defer cancel()
			outcome, docErr = retriever.Retrieve(retrieveCtx, question, r.limits.TopK)
		}()
	}
	if plan.Route == domain.RouteTools || plan.Route == domain.RouteBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			toolWork, toolOut = r.runTools(ctx, plan.Tools)
		}()
	}
	wg.Wait()

	notes := make([]string, 0, 2)
	if docErr != nil {
		r.logger.Warn("retrieval_branch_failed", "session_id", req.SessionID, "error", docErr)
		notes = append(notes, "the document knowledge base could not be searched for this answer")
		outcome = domain.RetrievalOutcome{Strategy: strategy}
	}
	for _, call := range toolWork {
		if call.Error != "" {
			notes = append(notes, fmt.Sprintf("tool %s: %s", call.Tool, call.Error))
		}
	}

	synthCtx, cancel := withTimeout(ctx, r.limits.SynthesisTimeout)
	defer cancel()
	answerText, err := r.generator.GenerateText(synthCtx,
		buildSynthesisPrompt(question, outcome.Results, toolOut, notes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrTimeout, "synthesize answer", err)
		}
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	answer := &domain.QueryAnswer{
		Answer:           answerText,
		Citations:        collectCitations(outcome.Results),
		ToolCalls:        toolWork,
		Strategy:         strategy,
		StrategyFellBack: outcome.FellBack,
		Route:            plan.Route,
		PlanHeuristic:    plan.Heuristic,
		State:            domain.StateAnswered,
		Notes:            notes,
	}

	r.appendHistory(ctx, req, answer)
	return answer, nil
}

// plan asks the model for a routing decision, retrying on unparseable output
// a bounded number of times. A model transport failure switches to the
// deterministic heuristic instead, so routing survives model outages.
func (r *AgentRouter) plan(ctx context.Context, question string) (domain.RoutePlan, error) {
	catalog := ""
	if r.registry != nil {
		catalog = r.registry.Describe()
	}
	prompt := buildPlanPrompt(question, catalog)

	var lastErr error
	for attempt := 0; attempt <= r.limits.PlanRetries; attempt++ {
		planCtx, cancel := withTimeout(ctx, r.limits.PlanTimeout)
		raw, err := r.generator.GenerateJSON(planCtx, prompt)
		cancel()
		if err != nil {
			r.logger.Warn("plan_model_unavailable", "error", err)
			return heuristicPlan(question), nil
		}

		plan, err := parsePlan(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return plan, nil
	}

	return domain.RoutePlan{}, domain.WrapError(domain.ErrPlanningFailed, "plan query", lastErr)
}

func parsePlan(raw string) (domain.RoutePlan, error) {
	var plan domain.RoutePlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return domain.RoutePlan{}, fmt.Errorf("parse plan json: %w", err)
	}

	switch plan.Route {
	case domain.RouteDocuments:
		plan.Tools = nil
	case domain.RouteTools, domain.RouteBoth:
		if len(plan.Tools) == 0 {
			return domain.RoutePlan{}, fmt.Errorf("route %q without tool calls", plan.Route)
		}
	default:
		return domain.RoutePlan{}, fmt.Errorf("unknown route %q", plan.Route)
	}

	kept := plan.Tools[:0]
	for _, call := range plan.Tools {
		if strings.TrimSpace(call.Name) != "" {
			kept = append(kept, call)
		}
	}
	plan.Tools = kept
	return plan, nil
}

// heuristicPlan is the documented fallback when the planning model cannot be
// reached: a ticker-like token routes to both branches with a price lookup,
// anything else routes to documents only.
func heuristicPlan(question string) domain.RoutePlan {
	ticker := extractTicker(question)
	if ticker == "" {
		return domain.RoutePlan{Route: domain.RouteDocuments, Heuristic: true}
	}
	return domain.RoutePlan{
		Route: domain.RouteBoth,
		Tools: []domain.PlannedToolCall{
			{Name: "price_lookup", Args: map[string]any{"ticker": ticker}},
		},
		Heuristic: true,
	}
}

// Single-letter dictionary words that also parse as tickers.
var tickerStopwords = map[string]struct{}{
	"A": {},
	"I": {},
}

func extractTicker(question string) string {
	for _, token := range strings.Fields(question) {
		token = strings.Trim(token, `"?.,!;:()`)
		token = strings.TrimSuffix(token, "'s")
		token = strings.TrimSuffix(token, "’s")
		if _, stop := tickerStopwords[token]; stop {
			continue
		}
		if tickerPattern.MatchString(token) {
			return token
		}
	}
	return ""
}

func (r *AgentRouter) runTools(ctx context.Context, planned []domain.PlannedToolCall) ([]domain.ToolCall, []string) {
	calls := make([]domain.ToolCall, 0, len(planned))
	outputs := make([]string, 0, len(planned))

	for _, request := range planned {
		call := domain.ToolCall{
			Tool:      request.Name,
			Args:      request.Args,
			InvokedAt: time.Now().UTC(),
		}

		tool, ok := r.registry.Get(request.Name)
		if !ok {
			call.ValidationStatus = domain.ValidationRejected
			call.Error = fmt.Sprintf("unknown tool %q", request.Name)
			calls = append(calls, call)
			continue
		}

		if err := tool.Validate(request.Args); err != nil {
			call.ValidationStatus = domain.ValidationRejected
			call.Error = err.Error()
			calls = append(calls, call)
			continue
		}
		call.ValidationStatus = domain.ValidationOK

		toolCtx, cancel := withTimeout(ctx, r.limits.ToolTimeout)
		result, err := tool.Invoke(toolCtx, request.Args)
		cancel()
		if err != nil {
			call.Error = err.Error()
			calls = append(calls, call)
			continue
		}

		call.Result = result
		calls = append(calls, call)
		outputs = append(outputs, result)
	}
	return calls, outputs
}

func (r *AgentRouter) appendHistory(ctx context.Context, req domain.QueryRequest, answer *domain.QueryAnswer) {
	if r.history == nil || req.UserID == "" || req.ChatID == "" {
		return
	}

	err := r.history.AppendExchange(ctx, req.UserID, req.ChatID, domain.HistoryRecord{
		Question:  req.Question,
		Answer:    answer.Answer,
		Citations: answer.Citations,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// History is an external convenience; losing a record must not fail
		// the answered query.
		r.logger.Warn("history_append_failed",
			"user_id", req.UserID,
			"chat_id", req.ChatID,
			"error", err,
		)
	}
}

func collectCitations(results []domain.RetrievalResult) []domain.Citation {
	seen := make(map[domain.Citation]struct{}, len(results))
	out := make([]domain.Citation, 0, len(results))
	for _, result := range results {
		citation := domain.Citation{
			SourceName: result.Chunk.SourceName,
			PageNumber: result.Chunk.PageNumber,
		}
		if _, dup := seen[citation]; dup {
			continue
		}
		seen[citation] = struct{}{}
		out = append(out, citation)
	}
	return out
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
