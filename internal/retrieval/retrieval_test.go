package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-agent/backend/internal/vector"
	"github.com/relay-agent/backend/internal/vector/memory"
)

// fixedEmbedder maps any text to a constant vector so store scores are
// controlled entirely by the seeded items.
type fixedEmbedder struct {
	vec []float32
	err error
}

func (f fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func seedStore(t *testing.T, items ...vector.Item) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	require.NoError(t, s.Upsert(context.Background(), items))
	return s
}

func TestRetrieveRespectsTopK(t *testing.T) {
	store := seedStore(t,
		vector.Item{ID: "a", Text: "a", Embedding: []float32{1, 0}},
		vector.Item{ID: "b", Text: "b", Embedding: []float32{1, 0.1}},
		vector.Item{ID: "c", Text: "c", Embedding: []float32{1, 0.2}},
	)

	b := NewBranch(fixedEmbedder{vec: []float32{1, 0}}, store, nil, 5, 0)

	window, err := b.Retrieve(context.Background(), "query", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(window), 2)

	for i := 1; i < len(window); i++ {
		assert.GreaterOrEqual(t, window[i-1].Score, window[i].Score)
	}
}

func TestRetrieveFiltersBelowMinScore(t *testing.T) {
	store := seedStore(t,
		vector.Item{ID: "aligned", Text: "aligned", Embedding: []float32{1, 0}},
		vector.Item{ID: "orthogonal", Text: "orthogonal", Embedding: []float32{0, 1}},
	)

	b := NewBranch(fixedEmbedder{vec: []float32{1, 0}}, store, nil, 5, 0.5)

	window, err := b.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "aligned", window[0].Text)
}

func TestRetrieveEmptyStoreIsValid(t *testing.T) {
	b := NewBranch(fixedEmbedder{vec: []float32{1, 0}}, memory.NewStore(), nil, 5, 0.25)

	window, err := b.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestRetrieveMapsProvenance(t *testing.T) {
	store := seedStore(t,
		vector.Item{
			ID:        "doc",
			Text:      "from a document",
			Embedding: []float32{1, 0},
			Metadata:  vector.Metadata{Provenance: vector.ProvenanceDocument},
		},
		vector.Item{
			ID:        "resp",
			Text:      "from a prior answer",
			Embedding: []float32{1, 0.01},
			Metadata:  vector.Metadata{Provenance: vector.ProvenanceProcessedResponse},
		},
	)

	b := NewBranch(fixedEmbedder{vec: []float32{1, 0}}, store, nil, 5, 0)

	window, err := b.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, window, 2)

	byText := map[string]string{}
	for _, item := range window {
		byText[item.Text] = item.Provenance
	}
	assert.Equal(t, ProvenanceDocument, byText["from a document"])
	assert.Equal(t, ProvenancePriorResponse, byText["from a prior answer"])
}

// deadlineStore records whether the context it is searched with carries a
// deadline.
type deadlineStore struct {
	hadDeadline bool
}

func (s *deadlineStore) Search(ctx context.Context, embedding []float32, topK int) ([]vector.Hit, error) {
	_, s.hadDeadline = ctx.Deadline()
	return nil, nil
}

func (s *deadlineStore) Upsert(ctx context.Context, items []vector.Item) error {
	return nil
}

func TestRetrieveBoundsStoreSearch(t *testing.T) {
	store := &deadlineStore{}
	b := NewBranch(fixedEmbedder{vec: []float32{1, 0}}, store, nil, 5, 0)

	_, err := b.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.True(t, store.hadDeadline, "store search must run under a deadline")
}

func TestRetrieveEmbedFailureIsError(t *testing.T) {
	b := NewBranch(fixedEmbedder{err: errors.New("embedding service down")}, memory.NewStore(), nil, 5, 0)

	_, err := b.Retrieve(context.Background(), "query", 5)
	assert.Error(t, err)
}
