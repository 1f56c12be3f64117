package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type StrategyName string

const (
	StrategyStandard    StrategyName = "standard"
	StrategyCompression StrategyName = "contextual_compression"
	StrategyMultiQuery  StrategyName = "multi_query"
)

func AllStrategies() []StrategyName {
	return []StrategyName{StrategyStandard, StrategyCompression, StrategyMultiQuery}
}

// chunkIDNamespace keeps chunk ids stable across processes and re-ingestions.
var chunkIDNamespace = uuid.MustParse("7a6d9c4e-52f1-4b0a-9f2e-3d8c1b7a5e60")

// ChunkID derives a deterministic id from chunk provenance and content.
// Re-ingesting identical content always yields the same id, which makes
// vector-store upserts idempotent.
func ChunkID(sourceName string, pageNumber int, text string) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(fmt.Sprintf("%s\x00%d\x00%s", sourceName, pageNumber, text))).String()
}

// DocumentChunk is the atomic stored unit of the knowledge base.
// PageNumber is 0 for sources without pagination (web articles).
// Immutable once stored.
type DocumentChunk struct {
	ID         string    `json:"id"`
	SourceName string    `json:"source_name"`
	PageNumber int       `json:"page_number,omitempty"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"-"`
}

type Citation struct {
	SourceName string `json:"source_name"`
	PageNumber int    `json:"page_number,omitempty"`
}

func (c Citation) String() string {
	if c.PageNumber > 0 {
		return fmt.Sprintf("%s, page %d", c.SourceName, c.PageNumber)
	}
	return c.SourceName
}

type SearchFilter struct {
	SourceName string
}

// RetrievalResult is produced fresh per query and never persisted.
type RetrievalResult struct {
	Chunk    DocumentChunk `json:"chunk"`
	Score    float64       `json:"score"`
	Strategy StrategyName  `json:"strategy"`
}

// RetrievalOutcome carries the result set plus whether the strategy had to
// degrade to standard retrieval for this query.
type RetrievalOutcome struct {
	Results  []RetrievalResult `json:"results"`
	Strategy StrategyName      `json:"strategy"`
	FellBack bool              `json:"fell_back"`
}
