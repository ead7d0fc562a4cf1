package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/metrics"
	"github.com/relay-agent/backend/internal/vector"
	"github.com/relay-agent/backend/pkg/logger"
	"github.com/relay-agent/backend/pkg/utils"
)

// Provenance tags on retrieved evidence. Persisted responses come back as
// prior_response so downstream consumers can tell them apart from
// ingested documents.
const (
	ProvenanceDocument      = "document"
	ProvenancePriorResponse = "prior_response"
)

const searchTimeout = 10 * time.Second

// ContextItem is one retrieved unit of evidence. Items are ordered most
// relevant first and never mutated after the window is assembled.
type ContextItem struct {
	Text       string
	Source     string
	Score      float64
	Provenance string
}

// Embedder turns query text into a vector. The LLM client satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache is the optional Redis-backed cache in front of the
// embedding provider.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Branch struct {
	embedder Embedder
	store    vector.Store
	cache    EmbeddingCache
	topK     int
	minScore float64
}

// NewBranch builds the retrieval branch. cache may be nil.
func NewBranch(embedder Embedder, store vector.Store, cache EmbeddingCache, topK int, minScore float64) *Branch {
	if topK <= 0 {
		topK = 5
	}
	return &Branch{
		embedder: embedder,
		store:    store,
		cache:    cache,
		topK:     topK,
		minScore: minScore,
	}
}

// Retrieve returns at most topK context items sorted by descending score.
// An empty window is a valid outcome, not an error; errors are reserved for
// embedding or store failures. topK <= 0 uses the branch default.
func (b *Branch) Retrieve(ctx context.Context, query string, topK int) ([]ContextItem, error) {
	if topK <= 0 {
		topK = b.topK
	}

	embedding, err := b.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Callers may arrive with a deadline-free context; a hung store must
	// not block the request past the search bound.
	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	hits, err := b.store.Search(searchCtx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	window := make([]ContextItem, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < b.minScore {
			continue
		}
		provenance := ProvenanceDocument
		if hit.Metadata.Provenance == vector.ProvenanceProcessedResponse {
			provenance = ProvenancePriorResponse
		}
		window = append(window, ContextItem{
			Text:       hit.Text,
			Source:     hit.Metadata.Source,
			Score:      hit.Score,
			Provenance: provenance,
		})
		if len(window) == topK {
			break
		}
	}

	logger.Debug("Context window assembled",
		zap.Int("hits", len(hits)),
		zap.Int("window", len(window)),
		zap.Float64("min_score", b.minScore),
	)

	return window, nil
}

func (b *Branch) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if b.cache == nil {
		return b.embedder.Embed(ctx, query)
	}

	hash := utils.HashString(query)
	if cached, ok, err := b.cache.GetEmbedding(ctx, hash); err == nil && ok {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	} else if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := b.cache.SetEmbedding(ctx, hash, embedding, 24*time.Hour); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}
