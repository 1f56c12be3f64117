package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/resilience"
)

// Client is a ChunkStore backed by the qdrant HTTP API. Point ids are the
// deterministic chunk ids, so re-upserting the same chunk is a no-op and
// Upsert can report how many chunks were actually new.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Upsert(ctx context.Context, chunks []domain.DocumentChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	for i := range chunks {
		if len(chunks[i].Vector) == 0 {
			return 0, fmt.Errorf("chunk %s has no vector", chunks[i].ID)
		}
	}

	if err := c.ensureCollection(ctx, len(chunks[0].Vector)); err != nil {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "qdrant ensure collection", err)
	}

	ids := make([]string, 0, len(chunks))
	for i := range chunks {
		ids = append(ids, chunks[i].ID)
	}
	existing, err := c.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	inserted := 0
	for i := range chunks {
		if _, ok := existing[chunks[i].ID]; !ok {
			inserted++
		}
		points = append(points, point{
			ID:     chunks[i].ID,
			Vector: chunks[i].Vector,
			Payload: map[string]any{
				"source_name": chunks[i].SourceName,
				"page_number": chunks[i].PageNumber,
				"text":        chunks[i].Text,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	err = c.execute(ctx, "qdrant_upsert", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
	})
	if err != nil {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "qdrant upsert", err)
	}
	return inserted, nil
}

func (c *Client) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var retrieveResp struct {
		Result []struct {
			ID string `json:"id"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points", c.baseURL, c.collection)
	reqBody := map[string]any{
		"ids":          ids,
		"with_payload": false,
		"with_vector":  false,
	}
	err := c.execute(ctx, "qdrant_retrieve", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, url, reqBody, &retrieveResp, "retrieve")
	})
	if err != nil {
		// A collection that does not exist yet holds no points.
		if isNotFound(err) {
			return out, nil
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "qdrant retrieve", err)
	}

	for _, r := range retrieveResp.Result {
		out[r.ID] = struct{}{}
	}
	return out, nil
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	k int,
	filter domain.SearchFilter,
) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	}
	if filter.SourceName != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": "source_name",
					"match": map[string]any{
						"value": filter.SourceName,
					},
				},
			},
		}
	}

	var searchResp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant_search", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search")
	})
	if err != nil {
		if isNotFound(err) {
			return []domain.RetrievalResult{}, nil
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "qdrant search", err)
	}

	out := make([]domain.RetrievalResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievalResult{
			Chunk: domain.DocumentChunk{
				ID:         r.ID,
				SourceName: getStringPayload(r.Payload, "source_name"),
				PageNumber: getIntPayload(r.Payload, "page_number"),
				Text:       getStringPayload(r.Payload, "text"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant_ensure_collection", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	})
	if err != nil {
		// 409 means the collection already exists, which is the goal.
		var statusErr *HTTPStatusError
		if asStatusError(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			c.markCollectionEnsured(vectorSize)
			return nil
		}
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyQdrantError)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}
