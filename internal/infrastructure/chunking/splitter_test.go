package chunking

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("a compact paragraph about dividends")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	if chunks := s.Split("   "); len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank text, got %d", len(chunks))
	}
	if chunks := s.Split(""); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestSplitProducesOverlappingWindows(t *testing.T) {
	words := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		words = append(words, "equity")
	}
	text := strings.Join(words, " ")

	s := NewSplitter(300, 60)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) > 300 {
			t.Fatalf("chunk %d exceeds window size: %d runes", i, len([]rune(chunk)))
		}
	}
}

func TestSplitDoesNotCutWords(t *testing.T) {
	words := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		words = append(words, "compounding")
	}
	text := strings.Join(words, " ")

	s := NewSplitter(250, 50)
	for i, chunk := range s.Split(text) {
		for _, token := range strings.Fields(chunk) {
			if token != "compounding" {
				t.Fatalf("chunk %d contains a cut word: %q", i, token)
			}
		}
	}
}

func TestSplitWindowsStartOnWordBoundaries(t *testing.T) {
	words := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		words = append(words, fmt.Sprintf("portfolio%03d", i))
	}
	text := strings.Join(words, " ")

	s := NewSplitter(200, 40)
	chunks := s.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	valid := make(map[string]struct{}, len(words))
	for _, w := range words {
		valid[w] = struct{}{}
	}
	for i, chunk := range chunks {
		tokens := strings.Fields(chunk)
		if len(tokens) == 0 {
			t.Fatalf("chunk %d is empty", i)
		}
		for _, token := range tokens {
			if _, ok := valid[token]; !ok {
				t.Fatalf("chunk %d contains a torn word: %q", i, token)
			}
		}
	}

	// Every source word must survive splitting; overlap may duplicate words
	// but never lose them.
	seen := make(map[string]struct{})
	for _, chunk := range chunks {
		for _, token := range strings.Fields(chunk) {
			seen[token] = struct{}{}
		}
	}
	for _, w := range words {
		if _, ok := seen[w]; !ok {
			t.Fatalf("word %q lost by splitting", w)
		}
	}
}

func TestNewSplitterNormalizesBadConfig(t *testing.T) {
	s := NewSplitter(0, -5)
	if s.ChunkSize != 1000 || s.Overlap != 0 {
		t.Fatalf("unexpected defaults: size=%d overlap=%d", s.ChunkSize, s.Overlap)
	}

	s = NewSplitter(100, 100)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap clamped to size/4, got %d", s.Overlap)
	}
}
