package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesDefaults(t *testing.T) {
	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port, got %q", cfg.APIPort)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 150 {
		t.Fatalf("unexpected chunking defaults: size=%d overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.VectorBackend != "qdrant" {
		t.Fatalf("expected qdrant default backend, got %q", cfg.VectorBackend)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("RETRIEVE_TOP_K", "7")
	t.Setenv("MARKET_DATA_RPS", "2.5")

	cfg := Load()
	if cfg.APIPort != "9999" {
		t.Fatalf("expected env api port, got %q", cfg.APIPort)
	}
	if cfg.RetrieveTopK != 7 {
		t.Fatalf("expected top k override, got %d", cfg.RetrieveTopK)
	}
	if cfg.MarketDataRPS != 2.5 {
		t.Fatalf("expected rps override, got %v", cfg.MarketDataRPS)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")

	cfg := Load()
	if cfg.ChunkSize != 1000 {
		t.Fatalf("expected fallback chunk size, got %d", cfg.ChunkSize)
	}
}

func TestLoadTopicsParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topics.yaml")
	content := `topics:
  - name: markets
    url: https://news.example.com/markets
    max_articles: 3
  - name: unbounded
    url: https://news.example.com/economy
  - name: broken
    url: ""
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	topics, err := LoadTopics(path, 8)
	if err != nil {
		t.Fatalf("load topics: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 usable topics, got %d", len(topics))
	}
	if topics[0].MaxArticles != 3 {
		t.Fatalf("expected explicit max articles, got %d", topics[0].MaxArticles)
	}
	if topics[1].MaxArticles != 8 {
		t.Fatalf("expected configured default max articles, got %d", topics[1].MaxArticles)
	}
}

func TestLoadTopicsNormalizesBadDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topics.yaml")
	content := `topics:
  - name: economy
    url: https://news.example.com/economy
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	topics, err := LoadTopics(path, 0)
	if err != nil {
		t.Fatalf("load topics: %v", err)
	}
	if len(topics) != 1 || topics[0].MaxArticles != 5 {
		t.Fatalf("expected built-in default of 5, got %+v", topics)
	}
}

func TestLoadTopicsMissingFileIsEmpty(t *testing.T) {
	topics, err := LoadTopics(filepath.Join(t.TempDir(), "absent.yaml"), 5)
	if err != nil {
		t.Fatalf("missing topics file must not fail: %v", err)
	}
	if len(topics) != 0 {
		t.Fatalf("expected no topics, got %d", len(topics))
	}
}
