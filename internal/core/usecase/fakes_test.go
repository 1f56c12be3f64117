package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

type fakeEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	queryCalls int
	failQuery  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls += len(texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = vectorFor(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.failQuery {
		return nil, errors.New("embedder down")
	}
	return vectorFor(text), nil
}

func vectorFor(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, float32(len(text)), 1}
}

// fakeStore is an in-memory chunk store. Search returns the preset results
// truncated to k, ignoring the query vector, so tests control ranking.
type fakeStore struct {
	mu            sync.Mutex
	chunks        map[string]domain.DocumentChunk
	searchResults []domain.RetrievalResult
	failSearch    error
	failUpsertAt  int
	upsertCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{chunks: make(map[string]domain.DocumentChunk), failUpsertAt: -1}
}

func (s *fakeStore) Upsert(_ context.Context, chunks []domain.DocumentChunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.failUpsertAt >= 0 && s.upsertCalls > s.failUpsertAt {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "fake upsert", errors.New("store down"))
	}
	inserted := 0
	for _, chunk := range chunks {
		if _, ok := s.chunks[chunk.ID]; !ok {
			inserted++
		}
		s.chunks[chunk.ID] = chunk
	}
	return inserted, nil
}

func (s *fakeStore) ExistingIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.chunks[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (s *fakeStore) Search(_ context.Context, _ []float32, k int, _ domain.SearchFilter) ([]domain.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSearch != nil {
		return nil, s.failSearch
	}
	results := s.searchResults
	if len(results) > k {
		results = results[:k]
	}
	out := make([]domain.RetrievalResult, len(results))
	copy(out, results)
	return out, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// scriptedGenerator replays canned completions. Text and JSON calls consume
// separate scripts; an entry that is an error fails that call.
type scriptedGenerator struct {
	mu          sync.Mutex
	textScript  []any
	jsonScript  []any
	textCalls   int
	jsonCalls   int
	lastTextArg string
}

func (g *scriptedGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.textCalls++
	g.lastTextArg = prompt
	return pop(&g.textScript)
}

func (g *scriptedGenerator) GenerateJSON(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.jsonCalls++
	return pop(&g.jsonScript)
}

func pop(script *[]any) (string, error) {
	if len(*script) == 0 {
		return "", errors.New("script exhausted")
	}
	head := (*script)[0]
	*script = (*script)[1:]
	switch v := head.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	default:
		return "", errors.New("bad script entry")
	}
}

type fakeSessionStore struct {
	mu         sync.Mutex
	strategies map[string]domain.StrategyName
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{strategies: make(map[string]domain.StrategyName)}
}

func (s *fakeSessionStore) Get(_ context.Context, sessionID string) (domain.StrategyName, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	strategy, ok := s.strategies[sessionID]
	return strategy, ok, nil
}

func (s *fakeSessionStore) PutIfAbsent(_ context.Context, sessionID string, strategy domain.StrategyName) (domain.StrategyName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.strategies[sessionID]; ok {
		return existing, nil
	}
	s.strategies[sessionID] = strategy
	return strategy, nil
}

type fakeMarketProvider struct {
	mu           sync.Mutex
	quoteCalls   int
	profileCalls int
	failQuote    error
}

func (p *fakeMarketProvider) Quote(_ context.Context, ticker string) (*domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quoteCalls++
	if p.failQuote != nil {
		return nil, p.failQuote
	}
	return &domain.Quote{Ticker: ticker, Price: 187.44, Currency: "USD"}, nil
}

func (p *fakeMarketProvider) CompanyProfile(_ context.Context, ticker string) (*domain.CompanyProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileCalls++
	return &domain.CompanyProfile{Ticker: ticker, Name: "Test Corp", Sector: "Technology"}, nil
}

func (p *fakeMarketProvider) calls() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quoteCalls, p.profileCalls
}

type fakeExtractor struct {
	pages map[string][]domain.SourcePage
}

func (f *fakeExtractor) ExtractPages(_ context.Context, path string) ([]domain.SourcePage, error) {
	name := path[strings.LastIndex(path, "/")+1:]
	pages, ok := f.pages[name]
	if !ok {
		return nil, errors.New("unreadable source")
	}
	return pages, nil
}

// paragraphChunker splits on blank lines, which keeps test fixtures readable.
type paragraphChunker struct{}

func (paragraphChunker) Split(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

type fakeNewsFetcher struct {
	articles []domain.Article
	err      error
}

func (f *fakeNewsFetcher) LatestArticles(_ context.Context, _ string, limit int) ([]domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.articles) > limit {
		return f.articles[:limit], nil
	}
	return f.articles, nil
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
	err     error
}

func (s *fakeHistoryStore) AppendExchange(_ context.Context, _, _ string, record domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}
