package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/relay-agent/backend/internal/vector"
)

// Store is a brute-force cosine-similarity vector store. It backs tests and
// the dev mode where no Milvus endpoint is configured.
type Store struct {
	mu    sync.RWMutex
	items []vector.Item
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Upsert(ctx context.Context, items []vector.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		replaced := false
		for i := range s.items {
			if s.items[i].ID == item.ID {
				s.items[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			s.items = append(s.items, item)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]vector.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		topK = 5
	}

	hits := make([]vector.Hit, 0, len(s.items))
	for _, item := range s.items {
		hits = append(hits, vector.Hit{
			ID:       item.ID,
			Text:     item.Text,
			Score:    cosine(embedding, item.Embedding),
			Metadata: item.Metadata,
		})
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
