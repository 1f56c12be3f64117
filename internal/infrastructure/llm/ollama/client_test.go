package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func TestEmbedSendsBatchAndReturnsVectors(t *testing.T) {
	var gotModel string
	var gotInput []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		gotInput = req.Input
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "gen-model", "embed-model", testExecutor()))
	vectors, err := embedder.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if gotModel != "embed-model" {
		t.Fatalf("expected embed model, got %q", gotModel)
	}
	if len(gotInput) != 2 || len(vectors) != 2 {
		t.Fatalf("expected 2 inputs and 2 vectors, got %d and %d", len(gotInput), len(vectors))
	}
	if vectors[1][0] != 0.3 {
		t.Fatalf("unexpected vector content: %v", vectors[1])
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1}},
		})
	}))
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "g", "e", testExecutor()))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateTextRetriesTransientFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "  the answer  "})
	}))
	defer srv.Close()

	gen := NewGenerator(New(srv.URL, "gen-model", "embed-model", testExecutor()))
	out, err := gen.GenerateText(context.Background(), "question")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "the answer" {
		t.Fatalf("expected trimmed answer, got %q", out)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestGenerateTextDoesNotRetryBadRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	gen := NewGenerator(New(srv.URL, "gen-model", "embed-model", testExecutor()))
	if _, err := gen.GenerateText(context.Background(), "question"); err == nil {
		t.Fatal("expected status error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call for a permanent status, got %d", calls)
	}
}

func TestGenerateJSONRequestsJSONFormatAndExtractsObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["format"] != "json" {
			t.Fatalf("expected json format flag, got %v", req["format"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"response": "Sure, here you go: {\"route\":\"documents\"} hope that helps",
		})
	}))
	defer srv.Close()

	gen := NewGenerator(New(srv.URL, "gen-model", "embed-model", testExecutor()))
	out, err := gen.GenerateJSON(context.Background(), "plan this")
	if err != nil {
		t.Fatalf("generate json: %v", err)
	}
	if out != `{"route":"documents"}` {
		t.Fatalf("expected extracted object, got %q", out)
	}
}
