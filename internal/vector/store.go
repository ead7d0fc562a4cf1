package vector

import (
	"context"
	"errors"
)

// ErrUnavailable is the normalized storage failure surfaced to callers.
// It never propagates past the storage writer to the query response.
var ErrUnavailable = errors.New("vector store unavailable")

// Provenance values for stored items.
const (
	ProvenanceDocument          = "document"
	ProvenanceProcessedResponse = "processed_response"
)

// Metadata is the flat per-item record stored alongside each vector.
type Metadata struct {
	Source         string
	Provenance     string
	Query          string
	Classification string
	Model          string
	Timestamp      int64
}

// Item is a unit of text with its embedding, ready for upsert.
type Item struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// Hit is a search result. Score is normalized relevance in [0,1],
// higher is better.
type Hit struct {
	ID       string
	Text     string
	Score    float64
	Metadata Metadata
}

// Store is the pipeline's view of the vector database. Reads and writes are
// independent atomic operations; no cross-operation transaction exists.
type Store interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error)
	Upsert(ctx context.Context, items []Item) error
}
