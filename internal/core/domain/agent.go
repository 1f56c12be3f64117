package domain

import "time"

// QueryState tracks a query through the router's state machine.
type QueryState string

const (
	StateReceived       QueryState = "received"
	StatePlanning       QueryState = "planning"
	StateRetrievingDocs QueryState = "retrieving_docs"
	StateCallingTools   QueryState = "calling_tools"
	StateSynthesizing   QueryState = "synthesizing"
	StateAnswered       QueryState = "answered"
	StateFailed         QueryState = "failed"
)

type Route string

const (
	RouteDocuments Route = "documents"
	RouteTools     Route = "tools"
	RouteBoth      Route = "both"
)

// PlannedToolCall is the planner's untrusted request to invoke a tool.
// Arguments must pass the tool's own validation before any invocation.
type PlannedToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type RoutePlan struct {
	Route Route             `json:"route"`
	Tools []PlannedToolCall `json:"tools,omitempty"`
	// Heuristic is set when the plan came from the deterministic fallback
	// rather than the planning model.
	Heuristic bool `json:"heuristic,omitempty"`
}

type ValidationStatus string

const (
	ValidationOK       ValidationStatus = "ok"
	ValidationRejected ValidationStatus = "rejected"
)

// ToolCall records one tool invocation for the answer's provenance trail.
type ToolCall struct {
	Tool             string           `json:"tool"`
	Args             map[string]any   `json:"args,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Result           string           `json:"result,omitempty"`
	Error            string           `json:"error,omitempty"`
	InvokedAt        time.Time        `json:"invoked_at"`
}

type QueryRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	Question  string `json:"question"`
}

type QueryAnswer struct {
	Answer           string       `json:"answer"`
	Citations        []Citation   `json:"citations"`
	ToolCalls        []ToolCall   `json:"tool_calls"`
	Strategy         StrategyName `json:"strategy"`
	StrategyFellBack bool         `json:"strategy_fell_back,omitempty"`
	Route            Route        `json:"route"`
	// PlanHeuristic is set when the route came from the deterministic
	// fallback planner instead of the planning model.
	PlanHeuristic bool       `json:"plan_heuristic,omitempty"`
	State         QueryState `json:"state"`
	Notes         []string   `json:"notes,omitempty"`
}

// RouterLimits bounds every blocking phase of one query.
type RouterLimits struct {
	PlanTimeout      time.Duration
	RetrieveTimeout  time.Duration
	ToolTimeout      time.Duration
	SynthesisTimeout time.Duration
	PlanRetries      int
	TopK             int
}

// HistoryRecord is one answered exchange appended to external chat history.
type HistoryRecord struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time  `json:"created_at"`
}
