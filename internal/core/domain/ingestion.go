package domain

type SourceType string

const (
	SourceFiles SourceType = "files"
	SourceWeb   SourceType = "web"
)

// SourcePage is one page of raw text from a source document. Number is 0 for
// unpaginated sources.
type SourcePage struct {
	Number int
	Text   string
}

// SourceItem is one raw document entering the ingestion pipeline.
type SourceItem struct {
	Name  string
	Pages []SourcePage
}

// IngestionBatch exists only for the duration of a single ingestion run; the
// document store is the only durable artifact.
type IngestionBatch struct {
	ID               string     `json:"id"`
	Source           SourceType `json:"source"`
	Items            int        `json:"items"`
	FailedItems      int        `json:"failed_items"`
	ProducedChunkIDs []string   `json:"produced_chunk_ids"`
	ChunksInserted   int        `json:"chunks_inserted"`
	ChunksSkipped    int        `json:"chunks_skipped"`
}
